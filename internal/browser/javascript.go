// internal/browser/javascript.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webactions/internal/selector"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLoggedResult bounds how much of a script result ends up in the log.
const maxLoggedResult = 512

// RunJS finds the element and runs script with it bound as arguments[0] (and
// this). script is a function body, so it returns its result with "return".
// The result is logged and, when res is non-nil, decoded into res.
func (s *Session) RunJS(ctx context.Context, sel selector.Selector, script string, res interface{}, opts ...FindOption) error {
	el, err := s.FindElement(ctx, sel, opts...)
	if err != nil {
		return err
	}
	return s.RunJSOn(ctx, el, script, res)
}

// RunJSOn is RunJS for an element that was already located.
func (s *Session) RunJSOn(ctx context.Context, el *Element, script string, res interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	raw, err := s.callOn(ctx, el, wrapElementScript(script))
	if err != nil {
		return fmt.Errorf("script failed on %s: %w", el, err)
	}
	s.logger.Info("JavaScript execution result.", zap.String("result", truncate(string(raw), maxLoggedResult)))
	return decodeResult(raw, res)
}

// ExecuteScript evaluates script in the page and decodes the result into res
// when res is non-nil.
func (s *Session) ExecuteScript(ctx context.Context, script string, res interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var raw []byte
	if err := s.runActions(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return decodeResult(raw, res)
}

// XPath returns the absolute, fully indexed XPath of el, e.g. /html[1]/body[1]/div[2].
func (s *Session) XPath(ctx context.Context, el *Element) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	raw, err := s.callOn(ctx, el, xpathJS)
	if err != nil {
		return "", fmt.Errorf("failed to compute xpath of %s: %w", el, err)
	}
	var path string
	if err := decodeResult(raw, &path); err != nil {
		return "", err
	}
	return path, nil
}

// Modification describes changes ModifyElement applies to a live element.
// Nil or empty fields are left alone.
type Modification struct {
	Text             *string           `json:"text"`
	Attributes       map[string]string `json:"attributes,omitempty"`
	RemoveAttributes []string          `json:"remove_attributes,omitempty"`
	Style            map[string]string `json:"style,omitempty"`
}

// ModifyElement rewrites text, attributes and inline style of el in place.
func (s *Session) ModifyElement(ctx context.Context, el *Element, mod Modification) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	if _, err := s.callOn(ctx, el, modifyJS, mod); err != nil {
		return fmt.Errorf("failed to modify %s: %w", el, err)
	}
	s.logger.Debug("Element modified.", zap.Stringer("element", el))
	return nil
}

// callOn runs a function declaration with el as this and returns the raw JSON result.
func (s *Session) callOn(ctx context.Context, el *Element, fn string, args ...interface{}) ([]byte, error) {
	if err := s.owns(el); err != nil {
		return nil, err
	}
	var raw []byte
	err := s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(el.node.BackendNodeID).Do(c)
		if err != nil {
			return fmt.Errorf("failed to resolve node: %w", err)
		}
		// Release fails once the page navigates away; nothing to do then.
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(c) }()
		return chromedp.CallFunctionOn(fn, &raw, bindObject(obj.ObjectID), args...).Do(c)
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return raw, nil
}

// bindObject makes the remote object the receiver of a CallFunctionOn.
func bindObject(id runtime.RemoteObjectID) chromedp.CallOption {
	return func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
		return p.WithObjectID(id)
	}
}

// wrapElementScript turns a function body that reads arguments[0] into a function
// declaration bound to the element.
func wrapElementScript(body string) string {
	return "function() {\n" +
		"  const __args = [this].concat(Array.prototype.slice.call(arguments));\n" +
		"  return (function() {\n" + body + "\n  }).apply(this, __args);\n" +
		"}"
}

func decodeResult(raw []byte, res interface{}) error {
	if res == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("could not decode script result: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

const xpathJS = `function() {
  const parts = [];
  for (let n = this; n && n.nodeType === Node.ELEMENT_NODE; n = n.parentNode) {
    let i = 1;
    for (let sib = n.previousElementSibling; sib; sib = sib.previousElementSibling) {
      if (sib.nodeName === n.nodeName) i++;
    }
    parts.unshift(n.nodeName.toLowerCase() + '[' + i + ']');
  }
  return '/' + parts.join('/');
}`

const modifyJS = `function(mod) {
  if (mod.text !== null && mod.text !== undefined) this.textContent = mod.text;
  for (const [k, v] of Object.entries(mod.attributes || {})) this.setAttribute(k, v);
  for (const k of (mod.remove_attributes || [])) this.removeAttribute(k);
  for (const [k, v] of Object.entries(mod.style || {})) this.style.setProperty(k, v);
  return true;
}`
