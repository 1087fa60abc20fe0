// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/webactions/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the Chrome process. Every Session is a tab in that process.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	// allocatorCtx manages the browser process; browserCtx holds the first tab,
	// which keeps the process alive. Session tabs derive from browserCtx.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	// wg tracks open sessions for a graceful shutdown.
	wg sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewManager launches Chrome with options derived from cfg and checks that it responds.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*Manager, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

// launchBrowser starts the browser process and runs a probe navigation.
func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator.",
		zap.Bool("headless", m.cfg.Browser.Headless),
		zap.String("window_size", m.cfg.Browser.WindowSize))

	opts := DefaultAllocatorOptions(m.cfg.Browser)
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, opts...)

	var ctxOpts []chromedp.ContextOption
	if m.cfg.Browser.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(m.logger.Sugar().Debugf))
	}
	ctxOpts = append(ctxOpts,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Errorf),
	)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocatorCtx, ctxOpts...)

	// The first Run allocates the process. A deadline on that Run would kill the
	// browser when it expires, so the startup timeout is enforced from outside.
	startup := m.cfg.Browser.StartupTimeout
	if startup <= 0 {
		startup = 30 * time.Second
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(m.browserCtx, chromedp.Navigate("about:blank"))
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(startup):
		err = fmt.Errorf("browser did not respond within %s", startup)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		m.browserCancel()
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config { return m.cfg }

// NewSession opens a new tab and wraps it in a Session.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser is no longer running: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(m.browserCtx)
	s := newSession(tabCtx, tabCancel, m.cfg, m.logger)

	m.wg.Add(1)
	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", s.ID()))
	}

	if err := s.initialize(ctx); err != nil {
		// ctx may be the reason initialization failed.
		cleanupCtx, cancel := context.WithTimeout(Detach(ctx), 10*time.Second)
		defer cancel()
		_ = s.Close(cleanupCtx)
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", s.ID()))
	return s, nil
}

// Sessions returns the number of open sessions.
func (m *Manager) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every open session concurrently, waits for them within ctx,
// and then terminates the browser process. It is safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.shutdownErr = m.shutdown(ctx)
	})
	return m.shutdownErr
}

func (m *Manager) shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.RLock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range open {
		g.Go(func() error {
			if err := s.Close(gctx); err != nil {
				m.logger.Warn("Error during session close in shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
				return err
			}
			return nil
		})
	}

	done := make(chan struct{})
	var closeErr error
	go func() {
		closeErr = g.Wait()
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	}

	// chromedp.Cancel closes the browser and waits for the process to exit.
	cancelDone := make(chan error, 1)
	go func() { cancelDone <- chromedp.Cancel(m.browserCtx) }()

	var err error
	select {
	case err = <-cancelDone:
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Browser did not exit in time; killing the process.")
	}
	m.browserCancel()
	m.allocatorCancel()

	m.logger.Info("Browser manager shutdown complete.")
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	select {
	case <-done:
		return closeErr
	default:
		return nil
	}
}
