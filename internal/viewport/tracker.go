package viewport

import (
	"fmt"
	"sync"

	"github.com/conneroisu/sitecycle/internal/dom"
)

// Anchor is a vertical reference line in the viewport.
type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorCenter Anchor = "center"
	AnchorBottom Anchor = "bottom"
)

func (a Anchor) offset(height float64) (float64, error) {
	switch a {
	case AnchorTop:
		return 0, nil
	case AnchorCenter:
		return height / 2, nil
	case AnchorBottom:
		return height, nil
	default:
		return 0, fmt.Errorf("unknown anchor %q", string(a))
	}
}

// TrackConfig configures a scroll-progress tracker.
//
// Progress is 0 when the element's top edge sits on the Top anchor and 1
// when its bottom edge sits on the Bottom anchor. It is clamped and then
// mapped linearly into Bounds.
type TrackConfig struct {
	Bounds   [2]float64
	Top      Anchor
	Bottom   Anchor
	Callback func(float64)
}

// Tracker reports scroll progress of an element through the viewport.
type Tracker struct {
	vp     *Viewport
	target *dom.Element
	cfg    TrackConfig

	mu        sync.Mutex
	value     float64
	seen      bool
	destroyed bool
}

// Track attaches a tracker to el and reports the initial value. Missing
// anchors default to a full pass: from the element's top entering at the
// bottom of the viewport to its bottom leaving at the top. Zero bounds
// default to [0, 1].
func (v *Viewport) Track(el *dom.Element, cfg TrackConfig) (*Tracker, error) {
	if cfg.Top == "" {
		cfg.Top = AnchorBottom
	}
	if cfg.Bottom == "" {
		cfg.Bottom = AnchorTop
	}
	if cfg.Bounds == [2]float64{} {
		cfg.Bounds = [2]float64{0, 1}
	}
	if _, err := cfg.Top.offset(0); err != nil {
		return nil, err
	}
	if _, err := cfg.Bottom.offset(0); err != nil {
		return nil, err
	}

	t := &Tracker{vp: v, target: el, cfg: cfg}
	v.attach(t)
	t.refresh()
	return t, nil
}

// Value returns the last reported value.
func (t *Tracker) Value() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Destroy detaches the tracker. It is safe to call more than once.
func (t *Tracker) Destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	t.mu.Unlock()
	t.vp.detach(t)
}

func (t *Tracker) refresh() {
	scrollY, _, height := t.vp.bounds()
	rect := t.target.Rect()

	// Anchors were validated in Track.
	topOffset, _ := t.cfg.Top.offset(height)
	bottomOffset, _ := t.cfg.Bottom.offset(height)

	value := lerp(t.cfg.Bounds, Progress(scrollY, rect.Top-topOffset, rect.Bottom()-bottomOffset))

	t.mu.Lock()
	if t.destroyed || (t.seen && value == t.value) {
		t.mu.Unlock()
		return
	}
	t.value = value
	t.seen = true
	cb := t.cfg.Callback
	t.mu.Unlock()

	if cb != nil {
		cb(value)
	}
}

// Progress maps scrollY into [0, 1] between the scroll offsets start and
// end. A degenerate range yields a step at start.
func Progress(scrollY, start, end float64) float64 {
	if end <= start {
		if scrollY >= start {
			return 1
		}
		return 0
	}
	p := (scrollY - start) / (end - start)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

func lerp(bounds [2]float64, p float64) float64 {
	return bounds[0] + (bounds[1]-bounds[0])*p
}
