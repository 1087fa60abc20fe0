// internal/selector/selector.go
package selector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned for selector types the session cannot resolve,
// and for selectors with an empty value.
var ErrUnsupported = errors.New("unsupported selector")

// Type identifies how a selector value is interpreted.
type Type string

const (
	XPath     Type = "xpath"
	CSS       Type = "css"
	ClassName Type = "class_name"
	ID        Type = "id"
	TagName   Type = "tag_name"
	Name      Type = "name"
)

var aliases = map[string]Type{
	"xpath":        XPath,
	"css":          CSS,
	"css_selector": CSS,
	"css selector": CSS,
	"class":        ClassName,
	"class_name":   ClassName,
	"class name":   ClassName,
	"id":           ID,
	"tag":          TagName,
	"tag_name":     TagName,
	"tag name":     TagName,
	"name":         Name,
}

// Parse resolves a selector type name. Matching is case-insensitive.
func Parse(s string) (Type, error) {
	t, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: type %q", ErrUnsupported, s)
	}
	return t, nil
}

func (t Type) String() string { return string(t) }

func (t Type) valid() bool {
	switch t {
	case XPath, CSS, ClassName, ID, TagName, Name:
		return true
	}
	return false
}

// Selector pairs a type with the value to match.
type Selector struct {
	Type  Type
	Value string
}

// New parses typeName and builds a selector from it.
func New(typeName, value string) (Selector, error) {
	t, err := Parse(typeName)
	if err != nil {
		return Selector{}, err
	}
	sel := Selector{Type: t, Value: value}
	return sel, sel.Validate()
}

func ByXPath(v string) Selector { return Selector{Type: XPath, Value: v} }
func ByCSS(v string) Selector   { return Selector{Type: CSS, Value: v} }
func ByClass(v string) Selector { return Selector{Type: ClassName, Value: v} }
func ByID(v string) Selector    { return Selector{Type: ID, Value: v} }
func ByTag(v string) Selector   { return Selector{Type: TagName, Value: v} }
func ByName(v string) Selector  { return Selector{Type: Name, Value: v} }

// Validate reports whether the selector can be resolved.
func (s Selector) Validate() error {
	if !s.Type.valid() {
		return fmt.Errorf("%w: type %q", ErrUnsupported, s.Type)
	}
	if strings.TrimSpace(s.Value) == "" {
		return fmt.Errorf("%w: empty %s selector", ErrUnsupported, s.Type)
	}
	return nil
}

// IsXPath reports whether the value is evaluated as XPath.
func (s Selector) IsXPath() bool { return s.Type == XPath }

// IsRelative reports whether an XPath selector is written relative to a context node.
func (s Selector) IsRelative() bool {
	return s.Type == XPath && strings.HasPrefix(strings.TrimSpace(s.Value), ".")
}

// CSS returns the selector expressed as CSS. The second result is false for XPath.
func (s Selector) CSS() (string, bool) {
	switch s.Type {
	case CSS:
		return s.Value, true
	case ClassName:
		return ClassToCSS(s.Value), true
	case ID:
		return "#" + escapeIdent(strings.TrimSpace(s.Value)), true
	case TagName:
		return strings.TrimSpace(s.Value), true
	case Name:
		return fmt.Sprintf(`[name="%s"]`, strings.ReplaceAll(s.Value, `"`, `\"`)), true
	}
	return "", false
}

// Scope rewrites a relative XPath so it evaluates beneath parentXPath.
// Absolute XPath and CSS selectors are returned unchanged.
func (s Selector) Scope(parentXPath string) Selector {
	if !s.IsRelative() || parentXPath == "" {
		return s
	}
	rel := strings.TrimPrefix(strings.TrimSpace(s.Value), ".")
	return Selector{Type: XPath, Value: parentXPath + rel}
}

func (s Selector) String() string {
	return fmt.Sprintf("%s=%s", s.Type, s.Value)
}

// ClassToCSS converts a space-separated class attribute value into a compound
// class selector: "btn  btn-primary" becomes ".btn.btn-primary".
func ClassToCSS(classes string) string {
	var b strings.Builder
	for _, c := range strings.Fields(classes) {
		b.WriteByte('.')
		b.WriteString(escapeIdent(c))
	}
	return b.String()
}

// escapeIdent backslash-escapes characters that are not valid in a CSS identifier.
func escapeIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-' || r == '_' || r >= 0x80:
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				// Leading digits must use the code point form.
				fmt.Fprintf(&b, `\3%c `, r)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
