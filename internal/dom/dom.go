// Package dom wraps a parsed HTML document with the small element API the
// module runtime needs: marker-attribute queries, data-* datasets, and a
// host-assigned layout box per element.
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Rect is an element's layout box in document coordinates (pixels).
type Rect struct {
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

// Bottom returns Top+Height.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Dataset is the camel-cased view of an element's data-* attributes.
type Dataset map[string]string

// Document is a parsed page.
type Document struct {
	root     *html.Node
	elements map[*html.Node]*Element
}

// Element is one element node of a Document. Elements are stable: the same
// node always yields the same *Element.
type Element struct {
	node *html.Node
	doc  *Document
	rect Rect
}

// Parse parses an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{root: root, elements: make(map[*html.Node]*Element)}, nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) wrap(n *html.Node) *Element {
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{node: n, doc: d}
	d.elements[n] = el
	return el
}

// QueryData returns every element carrying data-<attr>, in document order.
func (d *Document) QueryData(attr string) []*Element {
	name := "data-" + attr
	var found []*Element

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, ok := attrValue(n, name); ok {
				found = append(found, d.wrap(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(d.root)
	return found
}

// ByID returns the element with the given id attribute.
func (d *Document) ByID(id string) (*Element, bool) {
	var match *html.Node

	var traverse func(*html.Node) bool
	traverse = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if v, ok := attrValue(n, "id"); ok && v == id {
				match = n
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if traverse(c) {
				return true
			}
		}
		return false
	}

	if !traverse(d.root) {
		return nil, false
	}
	return d.wrap(match), true
}

// Render writes the document, including any attribute changes.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// TagName returns the lower-case tag name.
func (e *Element) TagName() string {
	return e.node.Data
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	return attrValue(e.node, name)
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// Data returns data-<key>, with key in attribute (kebab) form.
func (e *Element) Data(key string) (string, bool) {
	return e.Attr("data-" + key)
}

// Dataset returns all data-* attributes keyed in camelCase.
func (e *Element) Dataset() Dataset {
	ds := make(Dataset)
	for _, a := range e.node.Attr {
		if a.Namespace != "" || !strings.HasPrefix(a.Key, "data-") {
			continue
		}
		ds[camelCase(strings.TrimPrefix(a.Key, "data-"))] = a.Val
	}
	return ds
}

// Text returns the concatenated text content.
func (e *Element) Text() string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return sb.String()
}

// Rect returns the layout box last assigned by the host.
func (e *Element) Rect() Rect {
	return e.rect
}

// SetRect assigns the element's layout box.
func (e *Element) SetRect(r Rect) {
	e.rect = r
}

// String identifies the element for logs, e.g. section#hero.
func (e *Element) String() string {
	s := e.node.Data
	if id, ok := e.Attr("id"); ok && id != "" {
		s += "#" + id
	}
	return s
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// camelCase converts foo-bar-baz to fooBarBaz following the dataset rules:
// a dash followed by an ASCII lower-case letter becomes that letter
// upper-cased.
func camelCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' && i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z' {
			sb.WriteByte(s[i+1] - ('a' - 'A'))
			i++
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
