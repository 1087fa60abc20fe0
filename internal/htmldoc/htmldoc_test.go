package htmldoc_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webactions/internal/htmldoc"
	"github.com/xkilldash9x/webactions/internal/selector"
)

const testHTML = `
	<html>
	<head><title>  Pinned repositories </title></head>
	<body>
		<div id="header">
			<h1>Welcome</h1>
		</div>
		<div class="content">
			<p>P1</p><p>P2</p>
			<ul>
				<li class="repo card" data-lang="go"><a href="/alpha">alpha</a></li>
				<li class="repo card">
					<a href="https://example.org/beta">beta
					project</a>
				</li>
				<li id="special" class="repo"><a href="#top">gamma</a></li>
			</ul>
		</div>
		<div class="content"><p>P3</p></div>
		<input name="q" value="search">
	</body>
	</html>
	`

func parse(t *testing.T) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.Parse(strings.NewReader(testHTML))
	require.NoError(t, err)
	return doc
}

func TestDocument_Find(t *testing.T) {
	doc := parse(t)

	tests := []struct {
		sel  selector.Selector
		want int
	}{
		{selector.ByXPath("//li"), 3},
		{selector.ByCSS("div.content p"), 3},
		{selector.ByClass("card"), 2},
		{selector.ByID("special"), 1},
		{selector.ByTag("p"), 3},
		{selector.ByName("q"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.sel.String(), func(t *testing.T) {
			nodes, err := doc.Find(tt.sel)
			require.NoError(t, err)
			assert.Len(t, nodes, tt.want)
		})
	}

	t.Run("no match", func(t *testing.T) {
		_, err := doc.Find(selector.ByID("missing"))
		assert.ErrorIs(t, err, htmldoc.ErrNotFound)
	})

	t.Run("bad xpath", func(t *testing.T) {
		_, err := doc.Find(selector.ByXPath("//li["))
		assert.ErrorIs(t, err, selector.ErrUnsupported)
	})

	t.Run("empty value", func(t *testing.T) {
		_, err := doc.Find(selector.ByCSS(""))
		assert.ErrorIs(t, err, selector.ErrUnsupported)
	})
}

func TestDocument_FindWithin(t *testing.T) {
	doc := parse(t)
	items, err := doc.Find(selector.ByTag("li"))
	require.NoError(t, err)

	links, err := doc.FindWithin(items[1], selector.ByTag("a"))
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "beta project", htmldoc.Text(links[0]))

	rel, err := doc.FindWithin(items[2], selector.ByXPath("./a"))
	require.NoError(t, err)
	require.Len(t, rel, 1)
	assert.Equal(t, "gamma", htmldoc.Text(rel[0]))

	abs, err := doc.FindWithin(items[0], selector.ByXPath("//a"))
	require.NoError(t, err)
	assert.Len(t, abs, 3, "absolute paths ignore the parent")

	desc, err := doc.FindWithin(items[0], selector.ByXPath(".//a"))
	require.NoError(t, err)
	require.Len(t, desc, 1)
	assert.Equal(t, "alpha", htmldoc.Text(desc[0]))
}

func TestDocument_Extract(t *testing.T) {
	doc := parse(t)

	assert.Equal(t, "Pinned repositories", doc.Title())

	text, err := doc.Extract(selector.ByCSS("#header h1"), "")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", text)

	lang, err := doc.Extract(selector.ByClass("repo"), "data-lang")
	require.NoError(t, err)
	assert.Equal(t, "go", lang)

	_, err = doc.Extract(selector.ByID("special"), "data-lang")
	assert.ErrorIs(t, err, htmldoc.ErrAttributeNotFound)

	names, err := doc.ExtractAll(selector.ByCSS("li a"), htmldoc.TextAttribute)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta project", "gamma"}, names)

	langs, err := doc.ExtractAll(selector.ByTag("li"), "data-lang")
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, langs, "nodes without the attribute are skipped")

	_, err = doc.ExtractAll(selector.ByTag("p"), "href")
	assert.ErrorIs(t, err, htmldoc.ErrAttributeNotFound)

	none, err := doc.ExtractAll(selector.ByTag("table"), "")
	assert.ErrorIs(t, err, htmldoc.ErrNotFound)
	assert.Empty(t, none)

	items, err := doc.Find(selector.ByTag("li"))
	require.NoError(t, err)
	href, err := doc.ExtractWithin(items[2], selector.ByTag("a"), "href")
	require.NoError(t, err)
	assert.Equal(t, "#top", href)
	scoped, err := doc.ExtractAllWithin(items[1], selector.ByXPath(".//a"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta project"}, scoped)
	_, err = doc.ExtractWithin(items[0], selector.ByCSS("span"), "")
	assert.ErrorIs(t, err, htmldoc.ErrNotFound)
}

func TestDocument_Links(t *testing.T) {
	doc := parse(t)
	base, err := url.Parse("https://github.com/user")
	require.NoError(t, err)

	links := doc.Links(base, 0)
	require.Len(t, links, 3)
	assert.Equal(t, htmldoc.Link{
		Text:  "alpha",
		URL:   "https://github.com/alpha",
		XPath: "/html[1]/body[1]/div[2]/ul[1]/li[1]/a[1]",
	}, links[0])
	assert.Equal(t, "https://example.org/beta", links[1].URL)
	assert.Equal(t, "https://github.com/user#top", links[2].URL)
	assert.Equal(t, `//*[@id='special']/a[1]`, links[2].XPath)

	for _, l := range links {
		nodes, err := doc.Find(selector.ByXPath(l.XPath))
		require.NoError(t, err, l.XPath)
		assert.Len(t, nodes, 1, l.XPath)
	}

	assert.Len(t, doc.Links(nil, 2), 2)
}

func TestUniqueXPath(t *testing.T) {
	doc := parse(t)
	root := doc.Root()

	tests := []struct {
		name          string
		targetXPath   string
		expectedXPath string
	}{
		{"Body", "//body", "/html[1]/body[1]"},
		{"Element with ID", "//div[@id='header']", `//*[@id='header']`},
		{"Child of ID element", "//h1", `//*[@id='header']/h1[1]`},
		{"Specific index", "(//p)[2]", "/html[1]/body[1]/div[2]/p[2]"},
		{"Ambiguous classes", "(//div[@class='content'])[2]/p", "/html[1]/body[1]/div[3]/p[1]"},
		{"List item", "//ul/li[2]", "/html[1]/body[1]/div[2]/ul[1]/li[2]"},
		{"List item with ID", "//li[@id='special']", `//*[@id='special']`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targetNode := htmlquery.FindOne(root, tt.targetXPath)
			require.NotNil(t, targetNode, "target node not found with %s", tt.targetXPath)

			generated := htmldoc.UniqueXPath(targetNode)
			assert.Equal(t, tt.expectedXPath, generated)
			assert.Equal(t, targetNode, htmlquery.FindOne(root, generated), "generated XPath must select the original node")
		})
	}

	t.Run("indexed ignores ids", func(t *testing.T) {
		n := htmlquery.FindOne(root, "//li[@id='special']")
		assert.Equal(t, "/html[1]/body[1]/div[2]/ul[1]/li[3]", htmldoc.IndexedXPath(n))
	})

	t.Run("quoted ids", func(t *testing.T) {
		odd, err := htmldoc.Parse(strings.NewReader(`<div id="it's &quot;odd&quot;"><span>x</span></div>`))
		require.NoError(t, err)
		span := htmlquery.FindOne(odd.Root(), "//span")
		path := htmldoc.UniqueXPath(span)
		assert.True(t, strings.HasPrefix(path, "//*[@id=concat("), path)
		assert.Equal(t, span, htmlquery.FindOne(odd.Root(), path))
	})

	assert.Equal(t, "", htmldoc.UniqueXPath(nil))
}
