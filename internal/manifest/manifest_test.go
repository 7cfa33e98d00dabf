package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitecycle/internal/build"
)

func sampleResult() *build.Result {
	outputs := []build.Output{
		{Path: "app.js", Contents: []byte("console.log(1)")},
		{Path: "app.js.map", Contents: []byte("{}")},
		{Path: "styles/index.css", Contents: []byte("body{}")},
		{Path: "styles/index.css.map", Contents: []byte("{}")},
	}
	for i := range outputs {
		outputs[i].Size = int64(len(outputs[i].Contents))
		outputs[i].Kind = build.KindOf(outputs[i].Path)
	}
	return &build.Result{Outputs: outputs}
}

func TestGenerateAndSave(t *testing.T) {
	outDir := t.TempDir()
	result := sampleResult()
	require.NoError(t, result.Write(outDir))

	now := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
	m, err := Generate(result, outDir, now)
	require.NoError(t, err)

	assert.Equal(t, "2025-04-30T12:00:00Z", m.Timestamp)
	assert.Equal(t, []File{
		{Path: "app.js", Size: 14, Type: "script"},
		{Path: "app.js.map", Size: 2, Type: "map"},
	}, m.JavaScript.Files)
	assert.Len(t, m.CSS.Files, 2)
	require.Len(t, m.DistFiles, 4)
	assert.Equal(t, "app.js", m.DistFiles[0].Path)
	assert.Equal(t, "js", m.DistFiles[0].Type)
	assert.Equal(t, "styles/index.css", m.DistFiles[2].Path)

	require.NoError(t, Save(outDir, m, "https://example.com/"))

	data, err := os.ReadFile(filepath.Join(outDir, FileName))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "distFiles")
	assert.Contains(t, decoded, "javascript")

	page, err := os.ReadFile(filepath.Join(outDir, IndexName))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<h1>Build Manifest</h1>")
	assert.Contains(t, string(page), "JS •")
	assert.Contains(t, string(page), `href="https://example.com/app.js"`)

	// Regenerating does not list the manifest files themselves.
	again, err := Generate(result, outDir, now)
	require.NoError(t, err)
	assert.Len(t, again.DistFiles, 4)
}

func TestGenerateMissingOutDir(t *testing.T) {
	_, err := Generate(sampleResult(), filepath.Join(t.TempDir(), "missing"), time.Now())
	assert.Error(t, err)
}

func TestListing(t *testing.T) {
	var buf bytes.Buffer
	err := Listing(sampleResult().Outputs, "http://localhost:3000", "https://example.com").
		Render(context.Background(), &buf)
	require.NoError(t, err)
	html := buf.String()

	assert.Contains(t, html, "<h2>JavaScript Files:</h2>")
	assert.Contains(t, html, `&lt;script defer src=&#34;http://localhost:3000/app.js&#34;&gt;&lt;/script&gt;`)
	assert.Contains(t, html, `&lt;script defer src=&#34;https://example.com/app.js&#34;&gt;&lt;/script&gt;`)
	assert.Contains(t, html, `&lt;link rel=&#34;stylesheet&#34; href=&#34;http://localhost:3000/styles/index.css&#34;&gt;`)
	assert.Contains(t, html, "<h3>Source Maps:</h3>")
	assert.Contains(t, html, `<li class="map-file"><a href="/app.js.map"`)
}

func TestListingWithoutBaseURLOrMaps(t *testing.T) {
	outputs := []build.Output{{Path: "app.js", Kind: build.KindScript}}

	var buf bytes.Buffer
	require.NoError(t, Listing(outputs, "http://localhost:3000/", "").Render(context.Background(), &buf))

	assert.Contains(t, buf.String(), "{NO BASE URL}/app.js")
	assert.NotContains(t, buf.String(), "Source Maps")
}

func TestListingEscapesPaths(t *testing.T) {
	outputs := []build.Output{{Path: `x"><script>alert(1)</script>.js`, Kind: build.KindScript}}

	var buf bytes.Buffer
	require.NoError(t, Listing(outputs, "http://localhost:3000", "").Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "<script>alert(1)")
}

func TestIndexPageSanitizesLinks(t *testing.T) {
	m := &Manifest{
		Timestamp: "2025-04-30T12:00:00Z",
		DistFiles: []DistFile{{Path: "javascript:alert(1).js", Type: "js"}},
	}

	var buf bytes.Buffer
	require.NoError(t, IndexPage(m, "{}", "").Render(context.Background(), &buf))

	html := buf.String()
	assert.NotContains(t, html, `href="javascript:`)
	assert.Contains(t, html, "javascript:alert(1).js</a>", "the name is still shown")
}
