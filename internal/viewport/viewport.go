// Package viewport models the browser viewport for the module runtime and
// provides the two observers modules attach to elements: an intersection
// observer reporting in-view transitions, and a scroll-progress tracker.
//
// The host drives the viewport with ScrollTo and Resize; observers are
// re-evaluated synchronously, in attach order, on every change.
package viewport

import (
	"sync"
)

// listener is implemented by Observer and Tracker.
type listener interface {
	refresh()
}

// Viewport holds the scroll offset and size of the visible area.
type Viewport struct {
	mu        sync.Mutex
	scrollY   float64
	width     float64
	height    float64
	listeners []listener
}

// New creates a viewport of the given size scrolled to the top.
func New(width, height float64) *Viewport {
	return &Viewport{width: width, height: height}
}

// ScrollY returns the current vertical scroll offset.
func (v *Viewport) ScrollY() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollY
}

// Size returns the current width and height.
func (v *Viewport) Size() (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

// ScrollTo moves the viewport and re-evaluates every attached observer.
func (v *Viewport) ScrollTo(y float64) {
	if y < 0 {
		y = 0
	}
	v.mu.Lock()
	v.scrollY = y
	v.mu.Unlock()
	v.notify()
}

// Resize changes the viewport size and re-evaluates every attached observer.
func (v *Viewport) Resize(width, height float64) {
	v.mu.Lock()
	v.width, v.height = width, height
	v.mu.Unlock()
	v.notify()
}

// Refresh re-evaluates observers without moving the viewport, e.g. after
// the host re-laid out elements.
func (v *Viewport) Refresh() {
	v.notify()
}

// Attached reports how many observers and trackers are attached.
func (v *Viewport) Attached() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.listeners)
}

func (v *Viewport) attach(l listener) {
	v.mu.Lock()
	v.listeners = append(v.listeners, l)
	v.mu.Unlock()
}

func (v *Viewport) detach(l listener) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, existing := range v.listeners {
		if existing == l {
			v.listeners = append(v.listeners[:i], v.listeners[i+1:]...)
			return
		}
	}
}

func (v *Viewport) notify() {
	v.mu.Lock()
	snapshot := make([]listener, len(v.listeners))
	copy(snapshot, v.listeners)
	v.mu.Unlock()

	for _, l := range snapshot {
		l.refresh()
	}
}

// bounds returns the visible range [top, bottom] in document coordinates
// and the viewport height.
func (v *Viewport) bounds() (top, bottom, height float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollY, v.scrollY + v.height, v.height
}
