package dom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html><body>
  <nav id="nav" data-module="navbar">Menu</nav>
  <main>
    <section id="hero" data-cycle="cycle" data-speed="2" data-start-at="top">Hero</section>
    <div data-module="faq"><p>Q</p></div>
  </main>
  <footer data-module="">empty</footer>
</body></html>`

func TestQueryDataDocumentOrder(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	modules := doc.QueryData("module")
	require.Len(t, modules, 3)
	assert.Equal(t, "nav", modules[0].TagName())
	assert.Equal(t, "div", modules[1].TagName())
	assert.Equal(t, "footer", modules[2].TagName())

	cycles := doc.QueryData("cycle")
	require.Len(t, cycles, 1)
	assert.Equal(t, "section#hero", cycles[0].String())

	assert.Empty(t, doc.QueryData("missing"))
}

func TestElementsAreStable(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	a := doc.QueryData("cycle")[0]
	b, ok := doc.ByID("hero")
	require.True(t, ok)
	assert.Same(t, a, b)

	a.SetRect(Rect{Top: 100, Height: 50})
	assert.Equal(t, 150.0, b.Rect().Bottom())
}

func TestDataset(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	hero, ok := doc.ByID("hero")
	require.True(t, ok)

	assert.Equal(t, Dataset{
		"cycle":   "cycle",
		"speed":   "2",
		"startAt": "top",
	}, hero.Dataset())

	v, ok := hero.Data("start-at")
	assert.True(t, ok)
	assert.Equal(t, "top", v)
}

func TestCamelCase(t *testing.T) {
	tests := map[string]string{
		"module":       "module",
		"start-at":     "startAt",
		"a-b-c":        "aBC",
		"trailing-":    "trailing-",
		"upper-Case":   "upper-Case",
		"number-1":     "number-1",
		"double--dash": "double-Dash",
	}
	for in, want := range tests {
		assert.Equal(t, want, camelCase(in), in)
	}
}

func TestSetAttrAndRender(t *testing.T) {
	doc, err := ParseString(page)
	require.NoError(t, err)

	hero, _ := doc.ByID("hero")
	hero.SetAttr("style", "background-color: red")
	hero.SetAttr("style", "background-color: blue")

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Contains(t, buf.String(), `style="background-color: blue"`)
	assert.NotContains(t, buf.String(), "red")
	assert.Equal(t, "Hero", hero.Text())
}
