package viewport

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/conneroisu/sitecycle/internal/dom"
)

// Entry is delivered to an observer callback on every in-view transition.
type Entry struct {
	IsIn   bool
	Ratio  float64
	Target *dom.Element
}

// ObserveConfig configures an intersection observer.
type ObserveConfig struct {
	// RootMargin grows (or with negative values shrinks) the viewport before
	// intersecting, CSS style: "0px", "10% 0px", "-20px 0px 40px".
	RootMargin string
	// Threshold is the visible fraction of the element required to count
	// as in view. Zero means any overlap.
	Threshold float64
	AutoStart bool
	// Once stops the observer after its first in-view report.
	Once     bool
	Callback func(Entry)
}

// Margin is a parsed root margin resolved to pixels at evaluation time.
type Margin struct {
	Top, Bottom marginValue
}

type marginValue struct {
	value   float64
	percent bool
}

func (m marginValue) resolve(height float64) float64 {
	if m.percent {
		return height * m.value / 100
	}
	return m.value
}

// ParseMargin parses a CSS-style margin with one to four components. Only
// the vertical components matter for a vertically scrolling viewport.
func ParseMargin(s string) (Margin, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return Margin{}, nil
	}
	if len(fields) > 4 {
		return Margin{}, fmt.Errorf("root margin %q has more than four values", s)
	}

	values := make([]marginValue, len(fields))
	for i, f := range fields {
		mv, err := parseMarginValue(f)
		if err != nil {
			return Margin{}, fmt.Errorf("root margin %q: %w", s, err)
		}
		values[i] = mv
	}

	switch len(values) {
	case 1:
		return Margin{Top: values[0], Bottom: values[0]}, nil
	case 2:
		return Margin{Top: values[0], Bottom: values[0]}, nil
	default:
		return Margin{Top: values[0], Bottom: values[2]}, nil
	}
}

func parseMarginValue(s string) (marginValue, error) {
	switch {
	case strings.HasSuffix(s, "px"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "px"), 64)
		if err != nil {
			return marginValue{}, fmt.Errorf("invalid length %q", s)
		}
		return marginValue{value: f}, nil
	case strings.HasSuffix(s, "%"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return marginValue{}, fmt.Errorf("invalid percentage %q", s)
		}
		return marginValue{value: f, percent: true}, nil
	case s == "0":
		return marginValue{}, nil
	default:
		return marginValue{}, fmt.Errorf("value %q must be in px or %%", s)
	}
}

// Observer reports when its element enters or leaves the viewport.
type Observer struct {
	vp     *Viewport
	target *dom.Element
	cfg    ObserveConfig
	margin Margin

	mu        sync.Mutex
	active    bool
	reported  bool
	inView    bool
	ratio     float64
	destroyed bool
}

// Observe attaches an intersection observer to el.
func (v *Viewport) Observe(el *dom.Element, cfg ObserveConfig) (*Observer, error) {
	margin, err := ParseMargin(cfg.RootMargin)
	if err != nil {
		return nil, err
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v must be within [0, 1]", cfg.Threshold)
	}

	o := &Observer{vp: v, target: el, cfg: cfg, margin: margin}
	v.attach(o)
	if cfg.AutoStart {
		o.Start()
	}
	return o, nil
}

// Start activates the observer and reports the current state once.
func (o *Observer) Start() {
	o.mu.Lock()
	if o.destroyed || o.active {
		o.mu.Unlock()
		return
	}
	o.active = true
	o.reported = false
	o.mu.Unlock()
	o.refresh()
}

// Stop pauses reporting. InView keeps the last observed value.
func (o *Observer) Stop() {
	o.mu.Lock()
	o.active = false
	o.mu.Unlock()
}

// Destroy detaches the observer from the viewport. It is safe to call more
// than once.
func (o *Observer) Destroy() {
	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return
	}
	o.destroyed = true
	o.active = false
	o.mu.Unlock()
	o.vp.detach(o)
}

// InView reports whether the element was in view at the last evaluation.
func (o *Observer) InView() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inView
}

// Active reports whether the observer is currently reporting.
func (o *Observer) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Observer) refresh() {
	vpTop, vpBottom, height := o.vp.bounds()
	vpTop -= o.margin.Top.resolve(height)
	vpBottom += o.margin.Bottom.resolve(height)

	ratio := intersectionRatio(o.target.Rect(), vpTop, vpBottom)
	var isIn bool
	if o.cfg.Threshold == 0 {
		isIn = ratio > 0
	} else {
		isIn = ratio >= o.cfg.Threshold
	}

	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return
	}
	changed := !o.reported || isIn != o.inView
	o.inView = isIn
	o.ratio = ratio
	o.reported = true
	stopAfter := o.cfg.Once && isIn
	if stopAfter {
		o.active = false
	}
	cb := o.cfg.Callback
	o.mu.Unlock()

	if changed && cb != nil {
		cb(Entry{IsIn: isIn, Ratio: ratio, Target: o.target})
	}
}

// intersectionRatio is the visible fraction of r inside [top, bottom]. A
// zero-height element counts as fully visible while its edge is inside.
func intersectionRatio(r dom.Rect, top, bottom float64) float64 {
	if r.Height <= 0 {
		if r.Top >= top && r.Top <= bottom {
			return 1
		}
		return 0
	}
	overlap := min(r.Bottom(), bottom) - max(r.Top, top)
	if overlap <= 0 {
		return 0
	}
	return overlap / r.Height
}
