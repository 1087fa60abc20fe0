// internal/browser/element.go
package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// Element is a handle to a DOM node found in a Session. It stays valid until the
// node is removed or the page navigates away.
type Element struct {
	node    *cdp.Node
	session *Session
}

// TagName returns the lower-cased element name.
func (e *Element) TagName() string {
	return strings.ToLower(e.node.NodeName)
}

// NodeID returns the CDP node id backing the handle.
func (e *Element) NodeID() cdp.NodeID {
	return e.node.NodeID
}

// Attribute returns an attribute as last reported by the browser.
func (e *Element) Attribute(name string) (string, bool) {
	return e.node.Attribute(name)
}

func (e *Element) String() string {
	return fmt.Sprintf("<%s node=%d>", e.TagName(), e.node.NodeID)
}

// FindOption tunes how elements are located.
type FindOption func(*findOptions)

type findOptions struct {
	skipWait bool
	timeout  time.Duration
	within   *Element
}

// SkipWait queries the DOM once instead of waiting for the element to appear.
func SkipWait() FindOption {
	return func(o *findOptions) { o.skipWait = true }
}

// WithTimeout overrides wait.default_timeout for one lookup.
func WithTimeout(d time.Duration) FindOption {
	return func(o *findOptions) { o.timeout = d }
}

// Within scopes the lookup to the subtree of parent. CSS and class selectors always
// search beneath parent; XPath only when written relative (".//a"), otherwise it
// stays document-wide.
func Within(parent *Element) FindOption {
	return func(o *findOptions) { o.within = parent }
}

func (s *Session) findOptions(opts []FindOption) findOptions {
	o := findOptions{timeout: s.cfg.Wait.DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = 10 * time.Second
	}
	return o
}

func (s *Session) owns(el *Element) error {
	if el == nil || el.node == nil {
		return fmt.Errorf("%w: nil element", ErrStaleElement)
	}
	if el.session != s {
		return ErrStaleElement
	}
	return nil
}
