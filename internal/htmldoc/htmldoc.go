// internal/htmldoc/htmldoc.go
package htmldoc

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/webactions/internal/selector"
)

// TextAttribute asks Extract for the element's text instead of an attribute.
const TextAttribute = "__text__"

var (
	ErrNotFound          = errors.New("no element matched")
	ErrAttributeNotFound = errors.New("attribute not found")
)

// WantsText reports whether attribute selects element text.
func WantsText(attribute string) bool {
	return attribute == "" || attribute == TextAttribute
}

// Document is a parsed, static HTML page. It answers the same selectors a
// live session does, XPath through htmlquery and everything else through goquery.
type Document struct {
	root *html.Node
	doc  *goquery.Document
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{root: root, doc: goquery.NewDocumentFromNode(root)}, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Title returns the trimmed text of the first <title>.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Find returns every node matching sel in document order.
func (d *Document) Find(sel selector.Selector) ([]*html.Node, error) {
	return d.FindWithin(nil, sel)
}

// FindWithin is Find restricted to the subtree of parent. A nil parent searches
// the whole document. Only relative XPath (leading ".") is evaluated against
// parent; any other XPath searches the whole document.
func (d *Document) FindWithin(parent *html.Node, sel selector.Selector) ([]*html.Node, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if parent == nil {
		parent = d.root
	}

	var nodes []*html.Node
	if sel.IsXPath() {
		from := d.root
		if sel.IsRelative() {
			from = parent
		}
		var err error
		if nodes, err = htmlquery.QueryAll(from, sel.Value); err != nil {
			return nil, fmt.Errorf("%w: invalid xpath %q: %v", selector.ErrUnsupported, sel.Value, err)
		}
	} else {
		css, _ := sel.CSS()
		scope := d.doc.Selection
		if parent != d.root {
			scope = goquery.NewDocumentFromNode(parent).Selection
		}
		nodes = scope.Find(css).Nodes
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return nodes, nil
}

// Extract returns the text or attribute of the first match.
func (d *Document) Extract(sel selector.Selector, attribute string) (string, error) {
	return d.ExtractWithin(nil, sel, attribute)
}

// ExtractWithin is Extract over the subtree of parent.
func (d *Document) ExtractWithin(parent *html.Node, sel selector.Selector, attribute string) (string, error) {
	nodes, err := d.FindWithin(parent, sel)
	if err != nil {
		return "", err
	}
	return ExtractFrom(nodes[0], attribute)
}

// ExtractAll extracts from every match, skipping nodes without the attribute.
func (d *Document) ExtractAll(sel selector.Selector, attribute string) ([]string, error) {
	return d.ExtractAllWithin(nil, sel, attribute)
}

// ExtractAllWithin is ExtractAll over the subtree of parent.
func (d *Document) ExtractAllWithin(parent *html.Node, sel selector.Selector, attribute string) ([]string, error) {
	nodes, err := d.FindWithin(parent, sel)
	if err != nil {
		return []string{}, err
	}
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if v, err := ExtractFrom(n, attribute); err == nil {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return values, fmt.Errorf("%w: %q on %s", ErrAttributeNotFound, attribute, sel)
	}
	return values, nil
}

// ExtractFrom reads the text or named attribute of n.
func ExtractFrom(n *html.Node, attribute string) (string, error) {
	if WantsText(attribute) {
		return Text(n), nil
	}
	for _, a := range n.Attr {
		if a.Key == attribute {
			return a.Val, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrAttributeNotFound, attribute)
}

// Text returns the text content of n with runs of whitespace collapsed.
func Text(n *html.Node) string {
	return strings.Join(strings.Fields(htmlquery.InnerText(n)), " ")
}

// Link is an anchor resolved against the page URL. XPath locates the anchor
// itself, anchored on the nearest id when there is one.
type Link struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	XPath string `json:"xpath"`
}

// Links returns up to limit resolved anchors; limit <= 0 means all of them.
func (d *Document) Links(base *url.URL, limit int) []Link {
	links := []Link{}
	d.doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit > 0 && len(links) >= limit {
			return false
		}
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			text = u.String()
		}
		links = append(links, Link{Text: text, URL: u.String(), XPath: UniqueXPath(s.Get(0))})
		return true
	})
	return links
}
