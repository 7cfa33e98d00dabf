// Package pages orchestrates module lifecycles across page transitions.
//
// A transition runs strictly in two phases. The out phase settles every
// page-out hook before the current page's modules are stopped and torn
// down; the in phase swaps the document and constructs, mounts, starts and
// animates in the next page's modules.
package pages

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"

	"github.com/conneroisu/sitecycle/internal/config"
	"github.com/conneroisu/sitecycle/internal/dom"
	"github.com/conneroisu/sitecycle/internal/lifecycle"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/modules"
	"github.com/conneroisu/sitecycle/internal/store"
	"github.com/conneroisu/sitecycle/internal/viewport"
)

// ErrTransitionInProgress is returned when a transition is requested while
// another one is running. Transitions are not interruptible.
var ErrTransitionInProgress = errors.New("page transition already in progress")

// Options configures an App.
type Options struct {
	// Attribute marks class-style units, default "module".
	Attribute string
	// CycleAttribute marks function-style units, default "cycle".
	CycleAttribute string
	// DisableVisibilityGate runs element-bound page-out hooks even when
	// their element is out of view.
	DisableVisibilityGate bool
	Viewport              *viewport.Viewport
	Logger                logging.Logger
}

// OptionsFromConfig maps the modules section of the configuration onto
// Options.
func OptionsFromConfig(mc config.ModulesConfig) Options {
	return Options{
		Attribute:             mc.Attribute,
		CycleAttribute:        mc.CycleAttribute,
		DisableVisibilityGate: !mc.VisibilityGate,
	}
}

// App is the application root: it owns the lifecycle registry, the
// resolver, the viewport and the store for every page it mounts.
type App struct {
	opts      Options
	logger    logging.Logger
	lifecycle *lifecycle.Registry
	resolver  *modules.Resolver
	vp        *viewport.Viewport
	store     *store.Store[string, any]

	transitioning atomic.Bool

	mu        sync.Mutex
	doc       *dom.Document
	instances []modules.Instance
}

// New creates an App resolving units from catalog.
func New(catalog *modules.Catalog, opts Options) *App {
	if opts.Attribute == "" {
		opts.Attribute = "module"
	}
	if opts.CycleAttribute == "" {
		opts.CycleAttribute = "cycle"
	}
	if opts.Viewport == nil {
		opts.Viewport = viewport.New(1280, 800)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	logger := opts.Logger.WithComponent("pages")
	lc := lifecycle.New(opts.Viewport,
		lifecycle.WithLogger(opts.Logger),
		lifecycle.WithVisibilityGate(!opts.DisableVisibilityGate),
	)
	st := store.New[string, any]()

	scope := &modules.Scope{
		Lifecycle: lc,
		Viewport:  opts.Viewport,
		Store:     st,
		Logger:    opts.Logger,
	}

	return &App{
		opts:      opts,
		logger:    logger,
		lifecycle: lc,
		resolver:  modules.NewResolver(catalog, scope),
		vp:        opts.Viewport,
		store:     st,
	}
}

// Lifecycle returns the hook registry.
func (a *App) Lifecycle() *lifecycle.Registry { return a.lifecycle }

// Viewport returns the viewport observers attach to.
func (a *App) Viewport() *viewport.Viewport { return a.vp }

// Store returns the shared store.
func (a *App) Store() *store.Store[string, any] { return a.store }

// Document returns the mounted document.
func (a *App) Document() *dom.Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc
}

// Instances returns the class-style instances of the mounted page.
func (a *App) Instances() []modules.Instance {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]modules.Instance, len(a.instances))
	copy(out, a.instances)
	return out
}

// Start mounts the first page.
func (a *App) Start(ctx context.Context, doc *dom.Document) error {
	if !a.transitioning.CompareAndSwap(false, true) {
		return ErrTransitionInProgress
	}
	defer a.transitioning.Store(false)

	a.in(ctx, doc)
	return nil
}

// Transition leaves the current page and mounts next. It returns
// ErrTransitionInProgress if another transition has not finished.
func (a *App) Transition(ctx context.Context, next *dom.Document) error {
	if !a.transitioning.CompareAndSwap(false, true) {
		return ErrTransitionInProgress
	}
	defer a.transitioning.Store(false)

	op := logging.StartOperation(a.logger, "page transition")
	a.out(ctx)
	a.in(ctx, next)
	op.End(ctx)
	return nil
}

func (a *App) out(ctx context.Context) {
	if err := a.lifecycle.RunPageOut(ctx); err != nil {
		a.logger.Debug(ctx, "page-out hooks settled with errors", "error", err.Error())
	}

	a.mu.Lock()
	instances := a.instances
	a.instances = nil
	a.mu.Unlock()

	for _, inst := range instances {
		if s, ok := inst.(modules.Stopper); ok {
			a.guard(ctx, "stop", inst, s.Stop)
		}
	}

	a.lifecycle.RunDestroy()

	for _, inst := range instances {
		if d, ok := inst.(modules.Destroyer); ok {
			a.guard(ctx, "destroy", inst, d.Destroy)
		}
	}
}

func (a *App) in(ctx context.Context, doc *dom.Document) {
	a.mu.Lock()
	a.doc = doc
	a.mu.Unlock()

	instances := a.resolver.Create(ctx, doc, a.opts.Attribute)
	instances = append(instances, a.resolver.Create(ctx, doc, a.opts.CycleAttribute)...)

	a.mu.Lock()
	a.instances = instances
	a.mu.Unlock()

	for _, inst := range instances {
		if p, ok := inst.(modules.PageInner); ok {
			a.lifecycle.OnPageIn(p.PageIn)
		}
		if p, ok := inst.(modules.PageOuter); ok {
			a.lifecycle.OnPageOut(p.PageOut)
		}
	}

	a.lifecycle.RunMount()

	for _, inst := range instances {
		if s, ok := inst.(modules.Starter); ok {
			a.guard(ctx, "start", inst, s.Start)
		}
	}

	if err := a.lifecycle.RunPageIn(ctx); err != nil {
		a.logger.Debug(ctx, "page-in hooks settled with errors", "error", err.Error())
	}

	a.logger.Info(ctx, "page mounted", "instances", len(instances))
}

func (a *App) guard(ctx context.Context, method string, inst modules.Instance, fn func()) {
	var c panics.Catcher
	c.Try(fn)
	if rec := c.Recovered(); rec != nil {
		a.logger.Warn(ctx, rec.AsError(), "module method panicked",
			"method", method, "element", inst.Element().String())
	}
}
