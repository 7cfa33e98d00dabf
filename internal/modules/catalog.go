package modules

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/sitecycle/internal/errors"
)

// Kind distinguishes the two unit styles.
type Kind int

const (
	KindClass Kind = iota
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindFunc:
		return "function"
	default:
		return "unknown"
	}
}

type entry struct {
	kind    Kind
	factory ClassFactory
	fn      FuncModule
}

// Catalog is the registration table mapping identifiers to units.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]entry)}
}

// RegisterClass registers a class-style unit.
func (c *Catalog) RegisterClass(id string, factory ClassFactory) error {
	if factory == nil {
		return errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("module %q has no factory", id))
	}
	return c.register(id, entry{kind: KindClass, factory: factory})
}

// RegisterFunc registers a function-style unit.
func (c *Catalog) RegisterFunc(id string, fn FuncModule) error {
	if fn == nil {
		return errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("module %q has no function", id))
	}
	return c.register(id, entry{kind: KindFunc, fn: fn})
}

func (c *Catalog) register(id string, e entry) error {
	if strings.TrimSpace(id) == "" || id != strings.TrimSpace(id) {
		return errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("invalid module id %q", id))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; exists {
		return errors.NewResolveError(errors.ErrCodeModuleDuplicate,
			fmt.Sprintf("module %q registered twice", id), nil).WithComponent(id)
	}
	c.entries[id] = e
	return nil
}

func (c *Catalog) lookup(id string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Kind returns the style of the unit registered under id.
func (c *Catalog) Kind(id string) (Kind, bool) {
	e, ok := c.lookup(id)
	return e.kind, ok
}

// IDs returns the registered identifiers, sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
