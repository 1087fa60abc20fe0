// internal/browser/find.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webactions/internal/selector"
)

// WaitForElement waits up to timeout for sel to be present in the DOM.
// A zero timeout uses wait.default_timeout.
func (s *Session) WaitForElement(ctx context.Context, sel selector.Selector, timeout time.Duration, opts ...FindOption) (*Element, error) {
	o := s.findOptions(opts)
	o.skipWait = false
	if timeout > 0 {
		o.timeout = timeout
	}
	nodes, err := s.query(ctx, sel, false, o)
	if err != nil {
		return nil, err
	}
	return &Element{node: nodes[0], session: s}, nil
}

// FindElement returns the first element matching sel. Unless SkipWait is given
// it waits for the element first.
func (s *Session) FindElement(ctx context.Context, sel selector.Selector, opts ...FindOption) (*Element, error) {
	nodes, err := s.query(ctx, sel, false, s.findOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Element{node: nodes[0], session: s}, nil
}

// FindElements returns every element matching sel. Unless SkipWait is given it
// waits for at least one. No match yields an empty slice and ErrElementNotFound.
func (s *Session) FindElements(ctx context.Context, sel selector.Selector, opts ...FindOption) ([]*Element, error) {
	nodes, err := s.query(ctx, sel, true, s.findOptions(opts))
	if err != nil {
		return []*Element{}, err
	}
	return s.wrap(nodes), nil
}

func (s *Session) wrap(nodes []*cdp.Node) []*Element {
	els := make([]*Element, len(nodes))
	for i, n := range nodes {
		els[i] = &Element{node: n, session: s}
	}
	return els
}

// query resolves sel to nodes. The returned slice is never empty on success.
func (s *Session) query(ctx context.Context, sel selector.Selector, all bool, o findOptions) ([]*cdp.Node, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	queryOpts, sel, err := s.queryOptions(ctx, sel, all, o)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(zap.Stringer("selector", sel), zap.Bool("skip_wait", o.skipWait))
	var nodes []*cdp.Node

	if o.skipWait {
		queryOpts = append(queryOpts, chromedp.AtLeast(0))
		if err := s.runActions(ctx, chromedp.Nodes(sel.Value, &nodes, queryOpts...)); err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", sel, err)
		}
	} else {
		logger.Debug("Waiting for element.", zap.Duration("timeout", o.timeout))
		waitCtx, cancel := context.WithTimeout(ctx, o.timeout)
		err := s.runActions(waitCtx, chromedp.Nodes(sel.Value, &nodes, queryOpts...))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Debug("Element wait timed out.")
				return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, sel, o.timeout)
			}
			return nil, fmt.Errorf("failed to wait for %s: %w", sel, err)
		}
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	}
	if !all {
		nodes = nodes[:1]
	}
	return nodes, nil
}

// queryOptions maps a selector onto chromedp query options. XPath goes through
// DOM.performSearch, which is document-wide, so relative XPath under a parent is
// rewritten against the parent's absolute path.
func (s *Session) queryOptions(ctx context.Context, sel selector.Selector, all bool, o findOptions) ([]chromedp.QueryOption, selector.Selector, error) {
	if o.within != nil {
		if err := s.owns(o.within); err != nil {
			return nil, sel, err
		}
	}

	if sel.IsXPath() {
		if o.within != nil && sel.IsRelative() {
			parent, err := s.XPath(ctx, o.within)
			if err != nil {
				return nil, sel, fmt.Errorf("failed to resolve parent path: %w", err)
			}
			sel = sel.Scope(parent)
		}
		return []chromedp.QueryOption{chromedp.BySearch}, sel, nil
	}

	css, ok := sel.CSS()
	if !ok {
		return nil, sel, fmt.Errorf("%w: %s", selector.ErrUnsupported, sel)
	}
	var by chromedp.QueryOption = chromedp.ByQuery
	if all {
		by = chromedp.ByQueryAll
	}
	opts := []chromedp.QueryOption{by}
	if o.within != nil {
		opts = append(opts, chromedp.FromNode(o.within.node))
	}
	return opts, selector.ByCSS(css), nil
}
