// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	cookiejar "github.com/orirawlings/persistent-cookiejar"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/webactions/internal/config"
	"github.com/xkilldash9x/webactions/internal/htmldoc"
)

// Session is a single browser tab with a convenience API over chromedp.
// All methods are safe for sequential use; the underlying tab serializes commands.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	// limiter paces actions when browser.actions_per_second is set.
	limiter *rate.Limiter
	jar     *cookiejar.Jar

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

func newSession(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *zap.Logger) *Session {
	sessionID := uuid.New().String()
	s := &Session{
		id:     sessionID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("session").With(zap.String("session_id", sessionID)),
		cfg:    cfg,
	}
	if aps := cfg.Browser.ActionsPerSecond; aps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(aps), 1)
	}
	return s
}

// initialize creates the tab and applies the network configuration.
func (s *Session) initialize(ctx context.Context) error {
	// The first Run on the tab context creates the target.
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("failed to create browser tab: %w", err)
	}

	tasks := chromedp.Tasks{network.Enable()}
	if len(s.cfg.Network.Headers) > 0 {
		headers := make(network.Headers, len(s.cfg.Network.Headers))
		for k, v := range s.cfg.Network.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}
	if err := s.runActions(ctx, tasks); err != nil {
		return fmt.Errorf("failed to run session initialization tasks: %w", err)
	}

	if s.cfg.Network.CookieFile != "" {
		if err := s.LoadCookies(ctx); err != nil {
			// A missing or corrupt jar should not prevent browsing.
			s.logger.Warn("Could not load cookies.", zap.String("file", s.cfg.Network.CookieFile), zap.Error(err))
		}
	}
	return nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Context returns the tab context. Cancelling it closes the tab.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return ErrSessionClosed
	}
	return nil
}

// pace blocks until the rate limiter admits one more action.
func (s *Session) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// runActions executes chromedp actions bounded by both the session lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// GoTo navigates the tab to url and waits for the document body.
func (s *Session) GoTo(ctx context.Context, url string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}

	s.logger.Debug("Navigating session.", zap.String("url", url))
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.NavigationTimeout)
	defer cancel()

	start := time.Now()
	err := s.runActions(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	s.logger.Info("Navigation complete.", zap.String("url", url), zap.Duration("took", time.Since(start)))
	return nil
}

// CurrentURL returns the address of the loaded document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	var u string
	if err := s.runActions(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("failed to read current url: %w", err)
	}
	return u, nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	var title string
	if err := s.runActions(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

// PageSource returns the serialized DOM of the current document.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	var src string
	if err := s.runActions(ctx, chromedp.OuterHTML("html", &src, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page source: %w", err)
	}
	return src, nil
}

// Snapshot parses the current page source for offline extraction.
func (s *Session) Snapshot(ctx context.Context) (*htmldoc.Document, error) {
	src, err := s.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	return htmldoc.Parse(strings.NewReader(src))
}

// Close terminates the tab. Cookies are saved first when a cookie file is
// configured. Calling Close more than once is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()

	var saveErr error
	if jar != nil {
		// The tab is still alive here; the caller's ctx may already be done.
		saveCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		saveErr = s.saveCookies(saveCtx)
		cancel()
		if saveErr != nil {
			s.logger.Warn("Could not save cookies on close.", zap.Error(saveErr))
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return saveErr
}
