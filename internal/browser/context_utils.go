// internal/browser/context_utils.go
package browser

import (
	"context"
	"errors"
	"time"
)

// CombineContext returns a context derived from primary (which carries the chromedp
// target) that is also canceled when secondary is done. A deadline on secondary that
// is earlier than primary's is carried over so callers still see DeadlineExceeded.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	var (
		combined context.Context
		cancel   context.CancelFunc
	)
	if dl, ok := secondary.Deadline(); ok {
		combined, cancel = context.WithDeadline(primary, dl)
	} else {
		combined, cancel = context.WithCancel(primary)
	}

	stop := context.AfterFunc(secondary, func() {
		// An expired deadline is reported by combined's own timer.
		if errors.Is(secondary.Err(), context.DeadlineExceeded) {
			return
		}
		cancel()
	})
	return combined, func() {
		stop()
		cancel()
	}
}

// valueOnlyContext keeps the parent's values (the CDP target) but drops its
// deadline and cancellation.
type valueOnlyContext struct{ context.Context }

func (valueOnlyContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (valueOnlyContext) Done() <-chan struct{}       { return nil }
func (valueOnlyContext) Err() error                  { return nil }

// Detach returns a context that inherits values from ctx but is never canceled with it.
// Cleanup work that must outlive a canceled request (saving cookies on Close) runs on it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
