// internal/browser/errors_test.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/webactions/internal/htmldoc"
	"github.com/xkilldash9x/webactions/internal/selector"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", fmt.Errorf("waiting for css=#x: %w", ErrTimeout), "timeout"},
		{"not found", fmt.Errorf("xpath=//a: %w", ErrElementNotFound), "not_found"},
		{"attribute", ErrAttributeNotFound, "attribute_not_found"},
		{"static not found", fmt.Errorf("id=x: %w", htmldoc.ErrNotFound), "not_found"},
		{"static attribute", htmldoc.ErrAttributeNotFound, "attribute_not_found"},
		{"selector", fmt.Errorf("bad: %w", selector.ErrUnsupported), "unsupported_selector"},
		{"closed", ErrSessionClosed, "session_closed"},
		{"stale", ErrStaleElement, "stale_element"},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), "canceled"},
		{"deadline", context.DeadlineExceeded, "deadline_exceeded"},
		{"anything else", errors.New("cdp: websocket closed"), "driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}
