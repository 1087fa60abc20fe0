// internal/browser/screenshot.go
package browser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Screenshot captures the viewport, or the whole page when fullPage is set, and
// returns it as JPEG no wider than screenshot.max_width.
func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var raw []byte
	var action chromedp.Action
	if fullPage {
		// Quality 100 keeps the capture lossless; encodeScreenshot compresses once.
		action = chromedp.FullScreenshot(&raw, 100)
	} else {
		action = chromedp.CaptureScreenshot(&raw)
	}
	if err := s.runActions(ctx, action); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	out, err := encodeScreenshot(raw, s.cfg.Screenshot.MaxWidth, s.cfg.Screenshot.Quality)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Screenshot captured.", zap.Bool("full_page", fullPage), zap.Int("bytes", len(out)))
	return out, nil
}

// encodeScreenshot downscales img to maxWidth (0 disables) and encodes it as JPEG.
func encodeScreenshot(raw []byte, maxWidth, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
