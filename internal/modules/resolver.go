package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/panics"

	"github.com/conneroisu/sitecycle/internal/dom"
	"github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/logging"
)

// Resolver turns marker attributes into running units.
type Resolver struct {
	catalog *Catalog
	scope   *Scope
	logger  logging.Logger
}

// NewResolver creates a resolver constructing units from catalog with scope.
func NewResolver(catalog *Catalog, scope *Scope) *Resolver {
	logger := scope.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{
		catalog: catalog,
		scope:   scope,
		logger:  logger.WithComponent("modules"),
	}
}

// Create resolves every data-<attribute> element of doc in document order.
// Unknown identifiers and failing units are logged and skipped. Only
// class-style units produce instances.
func (r *Resolver) Create(ctx context.Context, doc *dom.Document, attribute string) []Instance {
	var instances []Instance

	for _, el := range doc.QueryData(attribute) {
		id, _ := el.Data(attribute)
		id = strings.TrimSpace(id)

		e, ok := r.catalog.lookup(id)
		if !ok {
			r.logger.Warn(ctx, errors.ErrModuleNotFound(attribute, id), "skipping element",
				"element", el.String())
			continue
		}

		inst, err := r.construct(el, e)
		if err != nil {
			r.logger.Warn(ctx, errors.NewResolveError(errors.ErrCodeModuleFailed,
				fmt.Sprintf("%s %q failed to initialise", attribute, id), err).WithComponent(id),
				"skipping element", "element", el.String())
			continue
		}
		if inst != nil {
			instances = append(instances, inst)
		}
	}

	r.logger.Debug(ctx, "modules created", "attribute", attribute, "instances", len(instances))
	return instances
}

func (r *Resolver) construct(el *dom.Element, e entry) (Instance, error) {
	var (
		inst Instance
		err  error
		c    panics.Catcher
	)
	c.Try(func() {
		switch e.kind {
		case KindClass:
			inst, err = e.factory(el, r.scope)
			if err == nil && inst == nil {
				err = fmt.Errorf("factory returned no instance")
			}
		case KindFunc:
			err = e.fn(el, el.Dataset(), r.scope)
		}
	})
	if rec := c.Recovered(); rec != nil {
		return nil, rec.AsError()
	}
	return inst, err
}

// Binding describes one marked element and whether its identifier resolves.
type Binding struct {
	Element   string `json:"element" yaml:"element"`
	Attribute string `json:"attribute" yaml:"attribute"`
	ID        string `json:"id" yaml:"id"`
	Kind      string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Resolved  bool   `json:"resolved" yaml:"resolved"`
}

// Bindings reports the data-<attribute> elements of doc without
// constructing anything.
func (r *Resolver) Bindings(doc *dom.Document, attribute string) []Binding {
	return Bindings(r.catalog, doc, attribute)
}

// Bindings is Resolver.Bindings for a bare catalog.
func Bindings(catalog *Catalog, doc *dom.Document, attribute string) []Binding {
	var out []Binding
	for _, el := range doc.QueryData(attribute) {
		id, _ := el.Data(attribute)
		id = strings.TrimSpace(id)

		b := Binding{Element: el.String(), Attribute: attribute, ID: id}
		if kind, ok := catalog.Kind(id); ok {
			b.Kind = kind.String()
			b.Resolved = true
		}
		out = append(out, b)
	}
	return out
}
