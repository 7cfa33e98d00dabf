// Package modules binds marker attributes in a document to registered
// behaviour units.
//
// Two styles of unit exist. Class-style units are constructed into an
// Instance that the page orchestrator starts, stops and destroys.
// Function-style units run once per element and wire themselves entirely
// through the lifecycle registry in their Scope.
package modules

import (
	"context"

	"github.com/conneroisu/sitecycle/internal/dom"
	"github.com/conneroisu/sitecycle/internal/lifecycle"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/store"
	"github.com/conneroisu/sitecycle/internal/viewport"
)

// Instance is a class-style unit bound to one element.
type Instance interface {
	Element() *dom.Element
}

// Starter is implemented by instances with work to begin after mount.
type Starter interface {
	Start()
}

// Stopper is implemented by instances with work to pause before destroy.
type Stopper interface {
	Stop()
}

// Destroyer is implemented by instances holding resources.
type Destroyer interface {
	Destroy()
}

// PageInner is implemented by instances animating a page in.
type PageInner interface {
	PageIn(ctx context.Context) error
}

// PageOuter is implemented by instances animating a page out.
type PageOuter interface {
	PageOut(ctx context.Context) error
}

// Base is embedded by class-style units to satisfy Instance.
type Base struct {
	El *dom.Element
}

// Element returns the owning element.
func (b *Base) Element() *dom.Element { return b.El }

// Scope is what a unit sees of the application root.
type Scope struct {
	Lifecycle *lifecycle.Registry
	Viewport  *viewport.Viewport
	Store     *store.Store[string, any]
	Logger    logging.Logger
}

// ClassFactory constructs a class-style unit for el.
type ClassFactory func(el *dom.Element, scope *Scope) (Instance, error)

// FuncModule runs a function-style unit for el.
type FuncModule func(el *dom.Element, data dom.Dataset, scope *Scope) error
