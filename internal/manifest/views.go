package manifest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/sitecycle/internal/build"
)

const noBaseURL = "{NO BASE URL}"

const listingStyle = `
      body { font-family: system-ui; padding: 2rem; }
      a { color: #0066cc; text-decoration: none; }
      a:hover { text-decoration: underline; }
      .main-link { font-weight: bold; }
      ul { list-style: none; padding: 0; }
      li { margin: 0.5rem 0; }
      .map-file { font-size: 0.8em; opacity: 0.5; }
      h2, h3 { margin-top: 2rem; }
      .script-tag { display: block; margin-top: 0.25rem; font-size: 0.9em; color: #666; font-family: monospace; }`

const indexStyle = `
      body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; max-width: 1200px; margin: 0 auto; padding: 2rem; background-color: #f5f5f5; }
      pre, .file-list { background-color: #fff; padding: 1.5rem; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
      pre { overflow-x: auto; white-space: pre-wrap; word-wrap: break-word; }
      .timestamp, .file-info { color: #666; font-size: 0.9rem; }
      .file-item { display: flex; justify-content: space-between; padding: 0.5rem 0; border-bottom: 1px solid #eee; }
      .file-path { font-family: monospace; color: #0066cc; }`

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(parts ...string) {
	for _, p := range parts {
		if w.err != nil {
			return
		}
		_, w.err = io.WriteString(w.w, p)
	}
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

// href writes u as an attribute value, replacing unsafe schemes.
func (w *writer) href(u string) {
	w.text(string(templ.URL(u)))
}

func (w *writer) render(ctx context.Context, c templ.Component) {
	if w.err != nil {
		return
	}
	w.err = c.Render(ctx, w.w)
}

// document is the page shell shared by the listing and the manifest page.
func document(title, style string, body ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw("<!DOCTYPE html>\n<html lang=\"en\">\n  <head>\n    <meta charset=\"UTF-8\">\n    <title>")
		w.text(title)
		w.raw("</title>\n")
		w.render(ctx, templ.Raw("    <style>"+style+"\n    </style>\n"))
		w.raw("  </head>\n  <body>\n")
		w.render(ctx, templ.Join(body...))
		w.raw("  </body>\n</html>\n")
		return w.err
	})
}

// section renders a heading followed by a list of items. Empty sections
// still render so the page layout stays stable.
func section(level, heading string, items []templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw("    <", level, ">")
		w.text(heading)
		w.raw("</", level, ">\n    <ul>\n")
		w.render(ctx, templ.Join(items...))
		w.raw("    </ul>\n")
		return w.err
	})
}

// Listing is the dev server's index: every script, style and source map of
// the current build with the tags to embed it from devOrigin and baseURL.
func Listing(outputs []build.Output, devOrigin, baseURL string) templ.Component {
	devOrigin = strings.TrimSuffix(devOrigin, "/")
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = noBaseURL
	}

	var scripts, styles, maps []templ.Component
	for _, o := range outputs {
		switch o.Kind {
		case build.KindScript:
			scripts = append(scripts, listingItem(o.Path, devOrigin, baseURL, scriptTag))
		case build.KindStyle:
			styles = append(styles, listingItem(o.Path, devOrigin, baseURL, linkTag))
		case build.KindMap:
			maps = append(maps, mapItem(o.Path))
		}
	}

	body := []templ.Component{
		section("h2", "JavaScript Files:", scripts),
		section("h2", "CSS Files:", styles),
	}
	if len(maps) > 0 {
		body = append(body, section("h3", "Source Maps:", maps))
	}
	return document("Generated Files", listingStyle, body...)
}

func scriptTag(src string) string {
	return fmt.Sprintf(`<script defer src="%s"></script>`, src)
}

func linkTag(href string) string {
	return fmt.Sprintf(`<link rel="stylesheet" href="%s">`, href)
}

func listingItem(path, devOrigin, baseURL string, tag func(string) string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`      <li>`, "\n", `        <a href="`)
		w.href("/" + path)
		w.raw(`" target="_blank" class="main-link">`)
		w.text(path)
		w.raw("</a>\n")
		for _, origin := range []string{devOrigin, baseURL} {
			w.raw(`        <code class="script-tag">`)
			w.text(tag(origin + "/" + path))
			w.raw("</code>\n")
		}
		w.raw("      </li>\n")
		return w.err
	})
}

func mapItem(path string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`      <li class="map-file"><a href="`)
		w.href("/" + path)
		w.raw(`" target="_blank" class="main-link">`)
		w.text(path)
		w.raw("</a></li>\n")
		return w.err
	})
}

// IndexPage renders the manifest as the output directory's index.html.
func IndexPage(m *Manifest, manifestJSON, baseURL string) templ.Component {
	baseURL = strings.TrimSuffix(baseURL, "/")

	files := make([]templ.Component, 0, len(m.DistFiles))
	for _, f := range m.DistFiles {
		files = append(files, distFileItem(f, baseURL))
	}

	header := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw("    <h1>Build Manifest</h1>\n    <div class=\"timestamp\">Generated at: ")
		w.text(displayTime(m.Timestamp))
		w.raw("</div>\n    <h2>All Files in Dist Directory</h2>\n    <div class=\"file-list\">\n")
		w.render(ctx, templ.Join(files...))
		w.raw("    </div>\n")
		return w.err
	})

	full := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw("    <h2>Full Manifest</h2>\n    <pre>")
		w.text(manifestJSON)
		w.raw("</pre>\n")
		return w.err
	})

	return document("Build Manifest", indexStyle, header, full)
}

func distFileItem(f DistFile, baseURL string) templ.Component {
	// Unicode-aware, so non-ASCII extensions upper-case correctly.
	upper := cases.Upper(language.Und)

	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`      <div class="file-item">`, "\n", `        <a href="`)
		w.href(f.Path)
		w.raw(`" target="_blank" class="file-path">`)
		w.text(f.Path)
		w.raw("</a>\n        <span class=\"file-info\">")
		w.text(fmt.Sprintf("%.2f KB • %s • Last modified: %s",
			float64(f.Size)/1024, upper.String(f.Type), displayTime(f.LastModified)))
		if baseURL != "" {
			w.raw(` • <a href="`)
			w.href(baseURL + "/" + f.Path)
			w.raw(`" target="_blank">deployed</a>`)
		}
		w.raw("</span>\n      </div>\n")
		return w.err
	})
}

func displayTime(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Format("Jan 2, 2006 15:04:05 MST")
}
