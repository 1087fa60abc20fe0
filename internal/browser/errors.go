// internal/browser/errors.go
package browser

import (
	"context"
	"errors"

	"github.com/xkilldash9x/webactions/internal/htmldoc"
	"github.com/xkilldash9x/webactions/internal/selector"
)

var (
	// ErrElementNotFound is returned when a selector matched nothing.
	ErrElementNotFound = errors.New("element not found")
	// ErrTimeout is returned when an explicit wait expired before the element appeared.
	ErrTimeout = errors.New("timed out waiting for element")
	// ErrAttributeNotFound is returned by Extract when the element lacks the attribute.
	ErrAttributeNotFound = errors.New("attribute not found")
	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrStaleElement is returned when an element handle belongs to another session.
	ErrStaleElement = errors.New("element does not belong to this session")
)

// Kind classifies err into a short, stable label suitable for reports and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrElementNotFound), errors.Is(err, htmldoc.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAttributeNotFound), errors.Is(err, htmldoc.ErrAttributeNotFound):
		return "attribute_not_found"
	case errors.Is(err, selector.ErrUnsupported):
		return "unsupported_selector"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, ErrStaleElement):
		return "stale_element"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	}
	return "driver"
}
