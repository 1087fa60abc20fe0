// internal/browser/browser_setup_test.go
package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webactions/internal/browser"
	"github.com/xkilldash9x/webactions/internal/config"
)

// testFixture holds the environment for browser integration tests.
type testFixture struct {
	Manager *browser.Manager
	Logger  *zap.Logger
	Config  *config.Config
	MgrCtx  context.Context
	cancel  context.CancelFunc
}

var chromeBinaries = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// requireChrome skips the test when no Chrome binary is on PATH.
func requireChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser integration test in short mode.")
	}
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("Skipping browser integration test: no Chrome or Chromium binary found.")
	return ""
}

// setupTestConfig returns a headless configuration with short waits.
func setupTestConfig(t *testing.T) (*zap.Logger, *config.Config) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))

	cfg := config.NewDefaultConfig()
	cfg.Browser.Headless = true
	cfg.Browser.IgnoreTLSErrors = true
	cfg.Browser.StartupTimeout = 45 * time.Second
	cfg.Wait.DefaultTimeout = 2 * time.Second
	cfg.Network.NavigationTimeout = 20 * time.Second
	return logger, cfg
}

// setupBrowserManager starts a Manager that is shut down when the test ends.
func setupBrowserManager(t *testing.T) *testFixture {
	t.Helper()
	execPath := requireChrome(t)
	logger, cfg := setupTestConfig(t)
	cfg.Browser.ExecPath = execPath

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	mgr, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		cancel()
		t.Fatalf("Failed to initialize Browser Manager: %v", err)
	}

	fixture := &testFixture{
		Manager: mgr,
		Logger:  logger,
		Config:  cfg,
		MgrCtx:  ctx,
		cancel:  cancel,
	}

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		_ = fixture.Manager.Shutdown(shutdownCtx)
		fixture.cancel()
	})

	return fixture
}

// initializeSession opens a tab that is closed when the test ends.
func (f *testFixture) initializeSession(t *testing.T) *browser.Session {
	t.Helper()

	sessionInitCtx, cancelInit := context.WithTimeout(f.MgrCtx, 30*time.Second)
	defer cancelInit()

	session, err := f.Manager.NewSession(sessionInitCtx)
	require.NoError(t, err)

	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		_ = session.Close(closeCtx)
	})
	return session
}

// createTestServer starts a server that is closed when the test ends.
func createTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// createStaticTestServer serves htmlContent at every path.
func createStaticTestServer(t *testing.T, htmlContent string) *httptest.Server {
	t.Helper()
	return createTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintln(w, htmlContent)
	}))
}
