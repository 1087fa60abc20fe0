// internal/browser/compare.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/xkilldash9x/webactions/internal/selector"
)

// ErrUnknownComparison is returned for comparison methods CompareElements does not know.
var ErrUnknownComparison = errors.New("unknown comparison method")

// SimilarityThreshold is the ComprehensiveComparison score at which two
// elements count as similar.
const SimilarityThreshold = 0.75

// ElementDescriptor is a snapshot of the properties used to compare elements.
type ElementDescriptor struct {
	Tag        string            `json:"tag"`
	Classes    []string          `json:"classes"`
	Attributes map[string]string `json:"attributes"`
	Text       string            `json:"text"`
	XPath      string            `json:"xpath"`
	ChildTags  []string          `json:"childTags"`
	Style      map[string]string `json:"style,omitempty"`
}

// Comparison is the outcome of ComprehensiveComparison.
type Comparison struct {
	Score   float64            `json:"score"`
	Similar bool               `json:"similar"`
	Parts   map[string]float64 `json:"parts"`
}

// Describe captures the comparison properties of el. Computed style is only
// collected when withStyle is set.
func (s *Session) Describe(ctx context.Context, el *Element, withStyle bool) (*ElementDescriptor, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	raw, err := s.callOn(ctx, el, describeJS, withStyle, comparedStyleProperties)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", el, err)
	}
	var d ElementDescriptor
	if err := decodeResult(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CompareElements reports whether a and b agree under method: tag, class,
// css_selector, xpath, text or attribute:<name>.
func (s *Session) CompareElements(ctx context.Context, a, b *Element, method string) (bool, error) {
	if _, err := compareDescriptors(&ElementDescriptor{}, &ElementDescriptor{}, method); err != nil {
		return false, err
	}
	da, err := s.Describe(ctx, a, false)
	if err != nil {
		return false, err
	}
	db, err := s.Describe(ctx, b, false)
	if err != nil {
		return false, err
	}
	return compareDescriptors(da, db, method)
}

// ComprehensiveComparison scores how alike a and b are across tag, classes,
// attributes, text and child structure, plus computed style when compareCSS is set.
func (s *Session) ComprehensiveComparison(ctx context.Context, a, b *Element, compareCSS bool) (*Comparison, error) {
	da, err := s.Describe(ctx, a, compareCSS)
	if err != nil {
		return nil, err
	}
	db, err := s.Describe(ctx, b, compareCSS)
	if err != nil {
		return nil, err
	}
	return scoreDescriptors(da, db, compareCSS), nil
}

// FindSimilarElements returns the elements in the document that share el's tag
// and classes: all of them when matchAllClasses is set, any one otherwise. The
// reference element itself is part of the result.
func (s *Session) FindSimilarElements(ctx context.Context, el *Element, matchAllClasses bool) ([]*Element, error) {
	d, err := s.Describe(ctx, el, false)
	if err != nil {
		return nil, err
	}
	return s.FindElements(ctx, selector.ByCSS(similarSelector(d, matchAllClasses)), SkipWait())
}

// similarSelector builds the CSS used by FindSimilarElements.
func similarSelector(d *ElementDescriptor, matchAllClasses bool) string {
	tag := d.Tag
	if tag == "" {
		tag = "*"
	}
	if len(d.Classes) == 0 {
		return tag
	}
	if matchAllClasses {
		classes := append([]string(nil), d.Classes...)
		sort.Strings(classes)
		return tag + selector.ClassToCSS(strings.Join(classes, " "))
	}
	alts := make([]string, len(d.Classes))
	for i, c := range d.Classes {
		alts[i] = tag + selector.ClassToCSS(c)
	}
	return strings.Join(alts, ", ")
}

func compareDescriptors(a, b *ElementDescriptor, method string) (bool, error) {
	switch {
	case method == "tag":
		return a.Tag == b.Tag, nil
	case method == "class":
		return equalSets(a.Classes, b.Classes), nil
	case method == "css_selector":
		return similarSelector(a, true) == similarSelector(b, true), nil
	case method == "xpath":
		return generalizeXPath(a.XPath) == generalizeXPath(b.XPath), nil
	case method == "text":
		return normalizeText(a.Text) == normalizeText(b.Text), nil
	case strings.HasPrefix(method, "attribute:"):
		name := strings.TrimPrefix(method, "attribute:")
		if name == "" {
			return false, fmt.Errorf("%w: %q names no attribute", ErrUnknownComparison, method)
		}
		va, okA := a.Attributes[name]
		vb, okB := b.Attributes[name]
		return okA && okB && va == vb, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownComparison, method)
}

func scoreDescriptors(a, b *ElementDescriptor, withStyle bool) *Comparison {
	parts := map[string]float64{
		"tag":        boolScore(a.Tag == b.Tag),
		"classes":    jaccard(a.Classes, b.Classes),
		"attributes": jaccard(attributePairs(a.Attributes), attributePairs(b.Attributes)),
		"text":       jaccard(strings.Fields(normalizeText(a.Text)), strings.Fields(normalizeText(b.Text))),
		"structure":  sequenceScore(a.ChildTags, b.ChildTags),
	}
	weights := map[string]float64{
		"tag": 0.2, "classes": 0.25, "attributes": 0.2, "text": 0.2, "structure": 0.15,
	}
	if withStyle {
		parts["style"] = styleScore(a.Style, b.Style)
		weights = map[string]float64{
			"tag": 0.15, "classes": 0.2, "attributes": 0.15, "text": 0.15, "structure": 0.15, "style": 0.2,
		}
	}

	var score float64
	for k, w := range weights {
		score += parts[k] * w
	}
	return &Comparison{Score: score, Similar: score >= SimilarityThreshold, Parts: parts}
}

var xpathIndex = regexp.MustCompile(`\[\d+\]`)

// generalizeXPath drops positional predicates so siblings of the same shape compare equal.
func generalizeXPath(p string) string {
	return xpathIndex.ReplaceAllString(p, "")
}

// normalizeText applies NFC and collapses runs of whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func attributePairs(attrs map[string]string) []string {
	out := make([]string, 0, len(attrs))
	for k, v := range attrs {
		// Classes and ids are scored elsewhere or unique by nature.
		if k == "class" || k == "id" {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

// jaccard is |A∩B| / |A∪B| over distinct values. Two empty sets are identical.
func jaccard(a, b []string) float64 {
	setA, setB := toSet(a), toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// sequenceScore compares child tag sequences position by position.
func sequenceScore(a, b []string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	same := 0
	for i := 0; i < min(len(a), len(b)); i++ {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(longest)
}

func styleScore(a, b map[string]string) float64 {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	if len(keys) == 0 {
		return 1
	}
	same := 0
	for k := range keys {
		va, okA := a[k]
		vb, okB := b[k]
		if okA && okB && va == vb {
			same++
		}
	}
	return float64(same) / float64(len(keys))
}

func equalSets(a, b []string) bool {
	sa, sb := toSet(a), toSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// comparedStyleProperties are the computed style properties scored when compareCSS is set.
var comparedStyleProperties = []string{
	"display", "position", "float", "width", "height",
	"margin-top", "margin-bottom", "padding-top", "padding-bottom",
	"font-family", "font-size", "font-weight", "color", "background-color",
	"border-top-width", "text-align",
}

const describeJS = `function(withStyle, props) {
  const attrs = {};
  for (const a of this.attributes) attrs[a.name] = a.value;
  const parts = [];
  for (let n = this; n && n.nodeType === Node.ELEMENT_NODE; n = n.parentNode) {
    let i = 1;
    for (let sib = n.previousElementSibling; sib; sib = sib.previousElementSibling) {
      if (sib.nodeName === n.nodeName) i++;
    }
    parts.unshift(n.nodeName.toLowerCase() + '[' + i + ']');
  }
  const out = {
    tag: this.tagName.toLowerCase(),
    classes: Array.from(this.classList),
    attributes: attrs,
    text: this.innerText || this.textContent || '',
    xpath: '/' + parts.join('/'),
    childTags: Array.from(this.children).map(c => c.tagName.toLowerCase()),
  };
  if (withStyle) {
    const cs = window.getComputedStyle(this);
    out.style = {};
    for (const p of props) out.style[p] = cs.getPropertyValue(p);
  }
  return out;
}`
