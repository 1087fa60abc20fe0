// internal/browser/extract.go
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/webactions/internal/htmldoc"
	"github.com/xkilldash9x/webactions/internal/selector"
)

// TextAttribute asks Extract for the element's visible text.
const TextAttribute = htmldoc.TextAttribute

// Extract returns the visible text of the element when attribute is empty or
// TextAttribute, otherwise the named attribute. A missing attribute yields
// ErrAttributeNotFound.
func (s *Session) Extract(ctx context.Context, sel selector.Selector, attribute string, opts ...FindOption) (string, error) {
	el, err := s.FindElement(ctx, sel, opts...)
	if err != nil {
		return "", err
	}
	return s.ExtractFrom(ctx, el, attribute)
}

// ExtractAll applies Extract to every match. Elements without the attribute are
// skipped; if none of them has it the error is ErrAttributeNotFound.
func (s *Session) ExtractAll(ctx context.Context, sel selector.Selector, attribute string, opts ...FindOption) ([]string, error) {
	els, err := s.FindElements(ctx, sel, opts...)
	if err != nil {
		return []string{}, err
	}
	values := make([]string, 0, len(els))
	for _, el := range els {
		v, err := s.ExtractFrom(ctx, el, attribute)
		if err != nil {
			if errors.Is(err, ErrAttributeNotFound) {
				continue
			}
			return values, err
		}
		values = append(values, v)
	}
	if len(values) == 0 && len(els) > 0 && !wantsText(attribute) {
		return values, fmt.Errorf("%w: %q on %s", ErrAttributeNotFound, attribute, sel)
	}
	return values, nil
}

// ExtractFrom reads text or an attribute from an element that was already located.
func (s *Session) ExtractFrom(ctx context.Context, el *Element, attribute string) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if err := s.owns(el); err != nil {
		return "", err
	}

	ids := []cdp.NodeID{el.node.NodeID}
	if wantsText(attribute) {
		var text string
		if err := s.runActions(ctx, chromedp.Text(ids, &text, chromedp.ByNodeID)); err != nil {
			return "", fmt.Errorf("failed to read text of %s: %w", el, err)
		}
		return text, nil
	}

	var (
		value string
		ok    bool
	)
	if err := s.runActions(ctx, chromedp.AttributeValue(ids, attribute, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("failed to read attribute %q of %s: %w", attribute, el, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %q on %s", ErrAttributeNotFound, attribute, el)
	}
	return value, nil
}

func wantsText(attribute string) bool {
	return htmldoc.WantsText(attribute)
}
