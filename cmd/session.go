package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webactions/internal/browser"
	"github.com/xkilldash9x/webactions/internal/config"
	"github.com/xkilldash9x/webactions/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const shutdownTimeout = 20 * time.Second

// withSession starts a browser, opens one tab and hands it to fn. The browser is
// shut down when fn returns, even if ctx was cancelled.
func withSession(ctx context.Context, cfg *config.Config, fn func(context.Context, *browser.Session) error) error {
	logger := observability.GetLogger()

	mgr, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	session, err := mgr.NewSession(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, session)
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
