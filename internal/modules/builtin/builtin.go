// Package builtin holds the behaviour units shipped with sitecycle.
package builtin

import (
	"github.com/conneroisu/sitecycle/internal/dom"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/modules"
)

// Register adds every built-in unit to c.
func Register(c *modules.Catalog) error {
	if err := c.RegisterFunc("cycle", Cycle); err != nil {
		return err
	}
	return c.RegisterClass("inview", NewInView)
}

// Catalog returns a catalog holding only the built-in units.
func Catalog() *modules.Catalog {
	c := modules.NewCatalog()
	if err := Register(c); err != nil {
		// Fresh catalog, ids are constant.
		panic(err)
	}
	return c
}

func loggerFor(scope *modules.Scope, el *dom.Element) logging.Logger {
	l := scope.Logger
	if l == nil {
		l = logging.Nop()
	}
	return l.WithComponent("builtin").With("element", el.String())
}
