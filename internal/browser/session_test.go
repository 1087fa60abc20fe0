// internal/browser/session_test.go
package browser_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webactions/internal/browser"
	"github.com/xkilldash9x/webactions/internal/selector"
)

const fixturePage = `<!DOCTYPE html>
<html>
<head><title>Fixture</title></head>
<body>
  <h1 id="heading" onmouseover="this.setAttribute('data-hovered', 'yes')">Repositories</h1>
  <ul id="repos">
    <li class="repo card" data-lang="go"><a href="/a">alpha</a><span class="stars">10</span></li>
    <li class="repo card" data-lang="rust"><a href="/b">beta</a><span class="stars">20</span></li>
    <li class="repo" data-lang="go"><a href="/c">gamma</a><span class="stars">30</span></li>
  </ul>
  <input id="search" name="q" value="initial">
  <button id="go" onclick="document.getElementById('out').textContent = 'clicked:' + document.getElementById('search').value">Go</button>
  <div id="out"></div>
  <div id="menu" oncontextmenu="this.textContent = 'context'; return false;">menu</div>
  <div id="late"></div>
  <div style="height: 3000px"></div>
  <p id="footer">end</p>
  <script>
    setTimeout(function () {
      var p = document.createElement('p');
      p.id = 'delayed';
      p.textContent = 'ready';
      document.getElementById('late').appendChild(p);
    }, 300);
  </script>
</body>
</html>`

func openFixture(t *testing.T) (*testFixture, *browser.Session, string) {
	t.Helper()
	f := setupBrowserManager(t)
	server := createStaticTestServer(t, fixturePage)
	s := f.initializeSession(t)
	require.NoError(t, s.GoTo(t.Context(), server.URL))
	return f, s, server.URL
}

func TestSession_PageInfo(t *testing.T) {
	_, s, url := openFixture(t)
	ctx := t.Context()

	current, err := s.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, url+"/", current)

	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Fixture", title)

	source, err := s.PageSource(ctx)
	require.NoError(t, err)
	assert.Contains(t, source, "Repositories")

	doc, err := s.Snapshot(ctx)
	require.NoError(t, err)
	heading, err := doc.Extract(selector.ByID("heading"), "")
	require.NoError(t, err)
	assert.Equal(t, "Repositories", heading)
}

func TestSession_Find(t *testing.T) {
	_, s, _ := openFixture(t)
	ctx := t.Context()

	t.Run("each selector type", func(t *testing.T) {
		cases := []struct {
			sel  selector.Selector
			want int
		}{
			{selector.ByID("heading"), 1},
			{selector.ByClass("repo"), 3},
			{selector.ByCSS("li.card"), 2},
			{selector.ByXPath("//li[@data-lang='go']"), 2},
			{selector.ByTag("li"), 3},
			{selector.ByName("q"), 1},
		}
		for _, c := range cases {
			els, err := s.FindElements(ctx, c.sel)
			require.NoError(t, err, c.sel.String())
			assert.Len(t, els, c.want, c.sel.String())
		}
	})

	t.Run("first match", func(t *testing.T) {
		el, err := s.FindElement(ctx, selector.ByTag("li"))
		require.NoError(t, err)
		assert.Equal(t, "li", el.TagName())
		lang, ok := el.Attribute("data-lang")
		assert.True(t, ok)
		assert.Equal(t, "go", lang)
	})

	t.Run("skip wait reports absence immediately", func(t *testing.T) {
		start := time.Now()
		_, err := s.FindElement(ctx, selector.ByID("missing"), browser.SkipWait())
		assert.ErrorIs(t, err, browser.ErrElementNotFound)
		assert.Less(t, time.Since(start), 2*time.Second)

		els, err := s.FindElements(ctx, selector.ByClass("missing"), browser.SkipWait())
		assert.ErrorIs(t, err, browser.ErrElementNotFound)
		assert.Empty(t, els)
	})

	t.Run("wait times out", func(t *testing.T) {
		_, err := s.FindElement(ctx, selector.ByID("missing"), browser.WithTimeout(200*time.Millisecond))
		assert.ErrorIs(t, err, browser.ErrTimeout)
		assert.Equal(t, "timeout", browser.Kind(err))
	})

	t.Run("wait sees late elements", func(t *testing.T) {
		el, err := s.WaitForElement(ctx, selector.ByID("delayed"), 5*time.Second)
		require.NoError(t, err)
		text, err := s.ExtractFrom(ctx, el, "")
		require.NoError(t, err)
		assert.Equal(t, "ready", text)
	})

	t.Run("unsupported selector", func(t *testing.T) {
		_, err := s.FindElement(ctx, selector.Selector{Type: "color", Value: "red"})
		assert.ErrorIs(t, err, selector.ErrUnsupported)
	})

	t.Run("scoped to parent", func(t *testing.T) {
		items, err := s.FindElements(ctx, selector.ByTag("li"))
		require.NoError(t, err)
		require.Len(t, items, 3)

		name, err := s.Extract(ctx, selector.ByTag("a"), browser.TextAttribute, browser.Within(items[1]))
		require.NoError(t, err)
		assert.Equal(t, "beta", name)

		stars, err := s.Extract(ctx, selector.ByXPath("./span"), "", browser.Within(items[2]))
		require.NoError(t, err)
		assert.Equal(t, "30", stars)

		// Absolute XPath ignores the parent.
		links, err := s.FindElements(ctx, selector.ByXPath("//a"), browser.Within(items[0]))
		require.NoError(t, err)
		assert.Len(t, links, 3)
	})
}

func TestSession_Extract(t *testing.T) {
	_, s, _ := openFixture(t)
	ctx := t.Context()

	text, err := s.Extract(ctx, selector.ByID("heading"), "")
	require.NoError(t, err)
	assert.Equal(t, "Repositories", text)

	hrefs, err := s.ExtractAll(ctx, selector.ByCSS("#repos a"), "href")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b", "/c"}, hrefs)

	names, err := s.ExtractAll(ctx, selector.ByCSS("#repos a"), browser.TextAttribute)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)

	_, err = s.Extract(ctx, selector.ByID("heading"), "data-missing")
	assert.ErrorIs(t, err, browser.ErrAttributeNotFound)

	_, err = s.ExtractAll(ctx, selector.ByTag("li"), "data-missing")
	assert.ErrorIs(t, err, browser.ErrAttributeNotFound)
}

func TestSession_Interaction(t *testing.T) {
	_, s, _ := openFixture(t)
	ctx := t.Context()

	require.NoError(t, s.Clear(ctx, selector.ByName("q")))
	require.NoError(t, s.TypeText(ctx, selector.ByName("q"), "hello"))
	require.NoError(t, s.Click(ctx, selector.ByID("go")))

	out, err := s.Extract(ctx, selector.ByID("out"), "")
	require.NoError(t, err)
	assert.Equal(t, "clicked:hello", out)

	require.NoError(t, s.RightClick(ctx, selector.ByID("menu")))
	assert.Eventually(t, func() bool {
		v, err := s.Extract(ctx, selector.ByID("menu"), "")
		return err == nil && v == "context"
	}, 2*time.Second, 50*time.Millisecond)

	require.NoError(t, s.Hover(ctx, selector.ByID("heading")))
	assert.Eventually(t, func() bool {
		v, err := s.Extract(ctx, selector.ByID("heading"), "data-hovered")
		return err == nil && v == "yes"
	}, 2*time.Second, 50*time.Millisecond)

	require.NoError(t, s.ScrollTo(ctx, selector.ByID("footer")))
	require.NoError(t, s.ScrollPage(ctx, "top"))
	require.NoError(t, s.ScrollPage(ctx, "bottom"))
	var y float64
	require.NoError(t, s.ExecuteScript(ctx, "window.scrollY", &y))
	assert.Greater(t, y, 0.0)
	assert.Error(t, s.ScrollPage(ctx, "sideways"))

	err = s.Click(ctx, selector.ByID("missing"), browser.SkipWait())
	assert.ErrorIs(t, err, browser.ErrElementNotFound)
}

func TestSession_JavaScript(t *testing.T) {
	_, s, _ := openFixture(t)
	ctx := t.Context()

	var id string
	require.NoError(t, s.RunJS(ctx, selector.ByID("heading"), "return arguments[0].id;", &id))
	assert.Equal(t, "heading", id)

	var count int
	require.NoError(t, s.ExecuteScript(ctx, "document.querySelectorAll('li').length", &count))
	assert.Equal(t, 3, count)

	heading, err := s.FindElement(ctx, selector.ByID("heading"))
	require.NoError(t, err)
	path, err := s.XPath(ctx, heading)
	require.NoError(t, err)
	assert.Equal(t, "/html[1]/body[1]/h1[1]", path)

	text := "Changed"
	require.NoError(t, s.ModifyElement(ctx, heading, browser.Modification{
		Text:       &text,
		Attributes: map[string]string{"data-x": "1"},
		Style:      map[string]string{"color": "red"},
	}))
	got, err := s.ExtractFrom(ctx, heading, "")
	require.NoError(t, err)
	assert.Equal(t, "Changed", got)
	attr, err := s.ExtractFrom(ctx, heading, "data-x")
	require.NoError(t, err)
	assert.Equal(t, "1", attr)

	var state struct {
		Tag   string `json:"tag"`
		Color string `json:"color"`
	}
	require.NoError(t, s.RunJSOn(ctx, heading,
		"const el = arguments[0]; return {tag: el.tagName, color: el.style.color};", &state))
	assert.Equal(t, "H1", state.Tag)
	assert.Equal(t, "red", state.Color)

	err = s.RunJS(ctx, selector.ByID("heading"), "throw new Error('boom');", nil)
	assert.Error(t, err)
}

func TestSession_Comparison(t *testing.T) {
	_, s, _ := openFixture(t)
	ctx := t.Context()

	items, err := s.FindElements(ctx, selector.ByTag("li"))
	require.NoError(t, err)
	require.Len(t, items, 3)

	same, err := s.CompareElements(ctx, items[0], items[1], "class")
	require.NoError(t, err)
	assert.True(t, same)

	same, err = s.CompareElements(ctx, items[0], items[2], "class")
	require.NoError(t, err)
	assert.False(t, same)

	same, err = s.CompareElements(ctx, items[0], items[2], "xpath")
	require.NoError(t, err)
	assert.True(t, same)

	_, err = s.CompareElements(ctx, items[0], items[1], "color")
	assert.ErrorIs(t, err, browser.ErrUnknownComparison)

	cmp, err := s.ComprehensiveComparison(ctx, items[0], items[1], true)
	require.NoError(t, err)
	assert.True(t, cmp.Similar, "score %.2f", cmp.Score)

	all, err := s.FindSimilarElements(ctx, items[0], true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	either, err := s.FindSimilarElements(ctx, items[0], false)
	require.NoError(t, err)
	assert.Len(t, either, 3)
}

func TestSession_Screenshot(t *testing.T) {
	_, s, _ := openFixture(t)

	for _, full := range []bool{false, true} {
		img, err := s.Screenshot(t.Context(), full)
		require.NoError(t, err)
		require.Greater(t, len(img), 2)
		assert.Equal(t, []byte{0xFF, 0xD8}, img[:2])
	}
}

func TestSession_Close(t *testing.T) {
	f, s, _ := openFixture(t)
	assert.Equal(t, 1, f.Manager.Sessions())

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Close(closeCtx))
	require.NoError(t, s.Close(closeCtx))
	assert.Equal(t, 0, f.Manager.Sessions())

	_, err := s.CurrentURL(t.Context())
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
	assert.Equal(t, "session_closed", browser.Kind(err))
}
