// Package lifecycle keeps the ordered hook lists a page's modules register
// into and flushes them at mount, destroy, page-in and page-out.
//
// Every list is drained exactly once per event: the runner swaps the list
// out under the lock before invoking anything, so a hook registered while a
// flush is running lands in the next flush.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/conneroisu/sitecycle/internal/dom"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/viewport"
)

// PageHook runs during a page transition.
type PageHook func(ctx context.Context) error

type pageOutHook struct {
	hook PageHook
	gate *viewport.Observer
}

// Registry owns the hook lists for one application root.
type Registry struct {
	mu      sync.Mutex
	mount   []func()
	destroy []func()
	pageIn  []PageHook
	pageOut []pageOutHook

	vp             *viewport.Viewport
	logger         logging.Logger
	visibilityGate bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for recovered panics.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithVisibilityGate toggles skipping element-bound page-out hooks whose
// element is out of view. Enabled by default.
func WithVisibilityGate(enabled bool) Option {
	return func(r *Registry) {
		r.visibilityGate = enabled
	}
}

// New creates a registry whose observers attach to vp.
func New(vp *viewport.Viewport, opts ...Option) *Registry {
	r := &Registry{
		vp:             vp,
		logger:         logging.Nop(),
		visibilityGate: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("lifecycle")
	return r
}

// Viewport returns the viewport observers are attached to.
func (r *Registry) Viewport() *viewport.Viewport {
	return r.vp
}

// OnMount registers fn for the next mount flush.
func (r *Registry) OnMount(fn func()) {
	r.mu.Lock()
	r.mount = append(r.mount, fn)
	r.mu.Unlock()
}

// OnDestroy registers fn for the next destroy flush.
func (r *Registry) OnDestroy(fn func()) {
	r.mu.Lock()
	r.destroy = append(r.destroy, fn)
	r.mu.Unlock()
}

// OnPageIn registers hook for the next page-in flush.
func (r *Registry) OnPageIn(hook PageHook) {
	r.mu.Lock()
	r.pageIn = append(r.pageIn, hook)
	r.mu.Unlock()
}

// PageOutOption configures a page-out registration.
type PageOutOption func(*pageOutConfig)

type pageOutConfig struct {
	element *dom.Element
}

// WithElement binds a page-out hook to el: while the visibility gate is
// enabled the hook only runs if el is in view when the page leaves.
func WithElement(el *dom.Element) PageOutOption {
	return func(c *pageOutConfig) {
		c.element = el
	}
}

// OnPageOut registers hook for the next page-out flush.
func (r *Registry) OnPageOut(hook PageHook, opts ...PageOutOption) {
	var cfg pageOutConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	entry := pageOutHook{hook: hook}
	if cfg.element != nil && r.visibilityGate {
		gate, err := r.OnView(cfg.element, viewport.ObserveConfig{AutoStart: true})
		if err != nil {
			// Unreachable with the zero margin; run ungated rather than drop it.
			r.logger.Warn(context.Background(), err, "failed to observe page-out element",
				"element", cfg.element.String())
		} else {
			entry.gate = gate
		}
	}

	r.mu.Lock()
	r.pageOut = append(r.pageOut, entry)
	r.mu.Unlock()
}

// OnView attaches an intersection observer to el and schedules its Destroy
// on the destroy list.
func (r *Registry) OnView(el *dom.Element, cfg viewport.ObserveConfig) (*viewport.Observer, error) {
	o, err := r.vp.Observe(el, cfg)
	if err != nil {
		return nil, fmt.Errorf("observe %s: %w", el, err)
	}
	r.OnDestroy(o.Destroy)
	return o, nil
}

// OnTrack attaches a scroll-progress tracker to el and schedules its
// Destroy on the destroy list.
func (r *Registry) OnTrack(el *dom.Element, cfg viewport.TrackConfig) (*viewport.Tracker, error) {
	t, err := r.vp.Track(el, cfg)
	if err != nil {
		return nil, fmt.Errorf("track %s: %w", el, err)
	}
	r.OnDestroy(t.Destroy)
	return t, nil
}

// Counts reports the number of pending hooks per list.
type Counts struct {
	Mount, Destroy, PageIn, PageOut int
}

// Pending returns the current list lengths.
func (r *Registry) Pending() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Counts{
		Mount:   len(r.mount),
		Destroy: len(r.destroy),
		PageIn:  len(r.pageIn),
		PageOut: len(r.pageOut),
	}
}

// RunMount flushes the mount list in registration order.
func (r *Registry) RunMount() {
	r.mu.Lock()
	fns := r.mount
	r.mount = nil
	r.mu.Unlock()

	r.runSync("mount", fns)
}

// RunDestroy flushes the destroy list in registration order.
func (r *Registry) RunDestroy() {
	r.mu.Lock()
	fns := r.destroy
	r.destroy = nil
	r.mu.Unlock()

	r.runSync("destroy", fns)
}

func (r *Registry) runSync(event string, fns []func()) {
	for i, fn := range fns {
		var c panics.Catcher
		c.Try(fn)
		if rec := c.Recovered(); rec != nil {
			r.logger.Warn(context.Background(), rec.AsError(), "lifecycle callback panicked",
				"event", event, "index", i)
		}
	}
}

// RunPageIn runs every page-in hook concurrently and waits for all of them
// to settle. The joined error is informational.
func (r *Registry) RunPageIn(ctx context.Context) error {
	r.mu.Lock()
	hooks := r.pageIn
	r.pageIn = nil
	r.mu.Unlock()

	return settle(ctx, hooks)
}

// RunPageOut runs every page-out hook concurrently and waits for all of
// them to settle. Element-bound hooks whose element is out of view are
// skipped. The joined error is informational.
func (r *Registry) RunPageOut(ctx context.Context) error {
	r.mu.Lock()
	entries := r.pageOut
	r.pageOut = nil
	r.mu.Unlock()

	hooks := make([]PageHook, 0, len(entries))
	for _, e := range entries {
		if e.gate != nil && !e.gate.InView() {
			continue
		}
		hooks = append(hooks, e.hook)
	}

	return settle(ctx, hooks)
}

func settle(ctx context.Context, hooks []PageHook) error {
	if len(hooks) == 0 {
		return nil
	}

	p := pool.New().WithErrors().WithContext(ctx)
	for _, hook := range hooks {
		p.Go(func(ctx context.Context) error {
			var err error
			var c panics.Catcher
			c.Try(func() { err = hook(ctx) })
			if rec := c.Recovered(); rec != nil {
				return rec.AsError()
			}
			return err
		})
	}
	return p.Wait()
}
