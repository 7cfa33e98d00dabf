package modules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitecycle/internal/dom"
	siteerrors "github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/lifecycle"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/store"
	"github.com/conneroisu/sitecycle/internal/viewport"
)

type stub struct {
	Base
	name string
}

func newScope(logger logging.Logger) *Scope {
	vp := viewport.New(1280, 800)
	return &Scope{
		Lifecycle: lifecycle.New(vp),
		Viewport:  vp,
		Store:     store.New[string, any](),
		Logger:    logger,
	}
}

func stubFactory(name string) ClassFactory {
	return func(el *dom.Element, _ *Scope) (Instance, error) {
		return &stub{Base: Base{El: el}, name: name}, nil
	}
}

func TestCatalogRegistration(t *testing.T) {
	c := NewCatalog()

	require.NoError(t, c.RegisterClass("navbar", stubFactory("navbar")))
	require.NoError(t, c.RegisterFunc("cycle", func(*dom.Element, dom.Dataset, *Scope) error { return nil }))

	err := c.RegisterClass("navbar", stubFactory("again"))
	require.Error(t, err)
	assert.True(t, siteerrors.IsResolveError(err))

	assert.Error(t, c.RegisterClass("", stubFactory("empty")))
	assert.Error(t, c.RegisterClass(" padded ", stubFactory("padded")))
	assert.Error(t, c.RegisterClass("nil", nil))
	assert.Error(t, c.RegisterFunc("nil", nil))

	assert.Equal(t, []string{"cycle", "navbar"}, c.IDs())
	kind, ok := c.Kind("cycle")
	assert.True(t, ok)
	assert.Equal(t, "function", kind.String())
}

func TestCreateSkipsUnresolvableElements(t *testing.T) {
	doc, err := dom.ParseString(`<body>
		<nav id="a" data-module="navbar"></nav>
		<div id="b" data-module="unknown"></div>
		<div id="c" data-module="broken"></div>
		<div id="d" data-module="panics"></div>
		<div id="e" data-module=""></div>
		<footer id="f" data-module="footer"></footer>
	</body>`)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: &buf})

	c := NewCatalog()
	require.NoError(t, c.RegisterClass("navbar", stubFactory("navbar")))
	require.NoError(t, c.RegisterClass("footer", stubFactory("footer")))
	require.NoError(t, c.RegisterClass("broken", func(*dom.Element, *Scope) (Instance, error) {
		return nil, errors.New("missing child")
	}))
	require.NoError(t, c.RegisterClass("panics", func(*dom.Element, *Scope) (Instance, error) {
		panic("nil map")
	}))

	instances := NewResolver(c, newScope(logger)).Create(context.Background(), doc, "module")
	require.Len(t, instances, 2)
	assert.Equal(t, "nav#a", instances[0].Element().String())
	assert.Equal(t, "footer#f", instances[1].Element().String())

	warnings := 0
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &rec))
		if rec["level"] == "WARN" {
			warnings++
		}
	}
	assert.Equal(t, 4, warnings)
}

func TestCreateFunctionUnits(t *testing.T) {
	doc, err := dom.ParseString(`<section id="hero" data-cycle="cycle" data-speed-factor="2"></section>`)
	require.NoError(t, err)

	var got dom.Dataset
	var gotScope *Scope
	c := NewCatalog()
	require.NoError(t, c.RegisterFunc("cycle", func(el *dom.Element, data dom.Dataset, scope *Scope) error {
		got = data
		gotScope = scope
		scope.Lifecycle.OnDestroy(func() {})
		return nil
	}))

	scope := newScope(nil)
	instances := NewResolver(c, scope).Create(context.Background(), doc, "cycle")

	assert.Empty(t, instances)
	assert.Equal(t, "2", got["speedFactor"])
	assert.Same(t, scope, gotScope)
	assert.Equal(t, 1, scope.Lifecycle.Pending().Destroy)
}

func TestFactoryReturningNilIsSkipped(t *testing.T) {
	doc, err := dom.ParseString(`<div data-module="empty"></div>`)
	require.NoError(t, err)

	c := NewCatalog()
	require.NoError(t, c.RegisterClass("empty", func(*dom.Element, *Scope) (Instance, error) { return nil, nil }))

	assert.Empty(t, NewResolver(c, newScope(nil)).Create(context.Background(), doc, "module"))
}

func TestBindings(t *testing.T) {
	doc, err := dom.ParseString(`<body>
		<nav id="nav" data-module="navbar"></nav>
		<div data-module="faq"></div>
		<section data-cycle="cycle"></section>
	</body>`)
	require.NoError(t, err)

	c := NewCatalog()
	require.NoError(t, c.RegisterClass("navbar", stubFactory("navbar")))

	assert.Equal(t, []Binding{
		{Element: "nav#nav", Attribute: "module", ID: "navbar", Kind: "class", Resolved: true},
		{Element: "div", Attribute: "module", ID: "faq"},
	}, NewResolver(c, newScope(nil)).Bindings(doc, "module"))

	assert.Equal(t, []Binding{
		{Element: "section", Attribute: "cycle", ID: "cycle"},
	}, Bindings(c, doc, "cycle"))
}
