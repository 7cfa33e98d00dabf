package builtin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/conneroisu/sitecycle/internal/dom"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/modules"
	"github.com/conneroisu/sitecycle/internal/viewport"
)

// InView tracks scroll progress of its element and publishes it to the
// store under "progress:<key>", where key is data-key or the element id.
type InView struct {
	modules.Base

	scope   *modules.Scope
	logger  logging.Logger
	key     string
	config  viewport.TrackConfig
	tracker *viewport.Tracker
}

// NewInView is the class factory for "inview". Dataset keys: key, from,
// to, top, bottom.
func NewInView(el *dom.Element, scope *modules.Scope) (modules.Instance, error) {
	data := el.Dataset()

	key := data["key"]
	if key == "" {
		key, _ = el.Attr("id")
	}
	if key == "" {
		return nil, fmt.Errorf("inview on %s needs data-key or an id", el)
	}

	bounds := [2]float64{0, 1}
	for i, name := range []string{"from", "to"} {
		raw, ok := data[name]
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid data-%s %q", name, raw)
		}
		bounds[i] = f
	}

	return &InView{
		Base:   modules.Base{El: el},
		scope:  scope,
		logger: loggerFor(scope, el),
		key:    "progress:" + key,
		config: viewport.TrackConfig{
			Bounds: bounds,
			Top:    viewport.Anchor(data["top"]),
			Bottom: viewport.Anchor(data["bottom"]),
		},
	}, nil
}

// Start attaches the tracker.
func (m *InView) Start() {
	if m.tracker != nil {
		return
	}
	cfg := m.config
	cfg.Callback = func(v float64) {
		m.logger.Debug(context.Background(), "inview progress", "value", v)
		m.scope.Store.Set(m.key, v)
	}

	t, err := m.scope.Viewport.Track(m.El, cfg)
	if err != nil {
		m.logger.Warn(context.Background(), err, "inview tracker not started")
		return
	}
	m.tracker = t
}

// Destroy detaches the tracker.
func (m *InView) Destroy() {
	if m.tracker != nil {
		m.tracker.Destroy()
		m.tracker = nil
	}
}

// Key returns the store key progress is published under.
func (m *InView) Key() string { return m.key }
