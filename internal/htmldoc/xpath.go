// internal/htmldoc/xpath.go
package htmldoc

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// UniqueXPath builds an XPath that selects exactly n. The nearest ancestor with
// an id anchors the path; without one the path is absolute and fully indexed.
func UniqueXPath(n *html.Node) string {
	return xpathOf(n, true)
}

// IndexedXPath returns the absolute /html[1]/body[1]/... path of n, ignoring ids.
// It matches the path a live session reports for the same element.
func IndexedXPath(n *html.Node) string {
	return xpathOf(n, false)
}

func xpathOf(node *html.Node, anchorOnID bool) string {
	if node == nil {
		return ""
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		if anchorOnID {
			if id := htmlquery.SelectAttr(n, "id"); id != "" {
				path = append(path, fmt.Sprintf(`//*[@id=%s]`, quoteXPath(id)))
				break
			}
		}

		// XPath indices are 1-based and count same-tag siblings only.
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// quoteXPath wraps s in quotes XPath 1.0 can parse, falling back to concat()
// when s holds both quote kinds.
func quoteXPath(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
