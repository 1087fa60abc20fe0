// internal/browser/interaction.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webactions/internal/selector"
)

// Click finds the element and clicks its centre with the left button.
func (s *Session) Click(ctx context.Context, sel selector.Selector, opts ...FindOption) error {
	el, err := s.FindElement(ctx, sel, opts...)
	if err != nil {
		return err
	}
	return s.ClickElement(ctx, el)
}

// ClickElement clicks an element that was already located.
func (s *Session) ClickElement(ctx context.Context, el *Element) error {
	return s.interact(ctx, el, "click", chromedp.MouseClickNode(el.node))
}

// RightClick opens the context menu on the element.
func (s *Session) RightClick(ctx context.Context, sel selector.Selector, opts ...FindOption) error {
	el, err := s.FindElement(ctx, sel, opts...)
	if err != nil {
		return err
	}
	return s.interact(ctx, el, "right_click", chromedp.MouseClickNode(el.node, chromedp.ButtonType(input.Right)))
}

// Hover moves the mouse pointer to the centre of the element.
func (s *Session) Hover(ctx context.Context, sel selector.Selector, opts ...FindOption) error {
	el, err := s.FindElement(ctx, sel, opts...)
	if err != nil {
		return err
	}
	return s.interact(ctx, el, "hover", chromedp.ActionFunc(func(c context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(el.node.NodeID).Do(c); err != nil {
			return err
		}
		box, err := dom.GetBoxModel().WithNodeID(el.node.NodeID).Do(c)
		if err != nil {
			return err
		}
		x, y, ok := quadCenter(box.Content)
		if !ok {
			return fmt.Errorf("element %s has no layout box", el)
		}
		return chromedp.MouseEvent(input.MouseMoved, x, y).Do(c)
	}))
}

// Clear empties an input or textarea.
func (s *Session) Clear(ctx context.Context, sel selector.Selector, opts ...FindOption) error {
	el, err := s.FindElement(ctx, sel, opts...)
	if err != nil {
		return err
	}
	return s.interact(ctx, el, "clear", chromedp.Clear([]cdp.NodeID{el.node.NodeID}, chromedp.ByNodeID))
}

// TypeText focuses the element and sends text as key events.
func (s *Session) TypeText(ctx context.Context, sel selector.Selector, text string, opts ...FindOption) error {
	el, err := s.FindElement(ctx, sel, opts...)
	if err != nil {
		return err
	}
	return s.interact(ctx, el, "type_text", chromedp.SendKeys([]cdp.NodeID{el.node.NodeID}, text, chromedp.ByNodeID))
}

// ScrollTo scrolls the element into view.
func (s *Session) ScrollTo(ctx context.Context, sel selector.Selector, opts ...FindOption) error {
	el, err := s.FindElement(ctx, sel, opts...)
	if err != nil {
		return err
	}
	return s.interact(ctx, el, "scroll_to", chromedp.ScrollIntoView([]cdp.NodeID{el.node.NodeID}, chromedp.ByNodeID))
}

// ScrollPage scrolls the window. direction is one of up, down, top or bottom.
func (s *Session) ScrollPage(ctx context.Context, direction string) error {
	script, err := scrollScript(direction)
	if err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	s.logger.Debug("Scrolling page.", zap.String("direction", direction))
	return s.ExecuteScript(ctx, script, nil)
}

func scrollScript(direction string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "down":
		return `window.scrollBy(0, window.innerHeight)`, nil
	case "up":
		return `window.scrollBy(0, -window.innerHeight)`, nil
	case "top":
		return `window.scrollTo(0, 0)`, nil
	case "bottom":
		return `window.scrollTo(0, document.documentElement.scrollHeight)`, nil
	}
	return "", fmt.Errorf("unknown scroll direction %q", direction)
}

// interact runs one driver action against an element the session owns.
func (s *Session) interact(ctx context.Context, el *Element, name string, action chromedp.Action) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.owns(el); err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}

	s.logger.Debug("Interacting with element.", zap.String("action", name), zap.Stringer("element", el))
	if err := s.runActions(ctx, action); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed on %s: %w", name, el, err)
	}
	return nil
}

// quadCenter returns the centroid of a CDP quad (four x,y pairs).
func quadCenter(q dom.Quad) (float64, float64, bool) {
	if len(q) < 8 {
		return 0, 0, false
	}
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return x / 4, y / 4, true
}
