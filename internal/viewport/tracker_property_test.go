//go:build property

package viewport

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProgressProperties validates clamping and monotonicity of scroll progress.
func TestProgressProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("progress stays within [0, 1]", prop.ForAll(
		func(scrollY, start, length float64) bool {
			p := Progress(scrollY, start, start+length)
			return p >= 0 && p <= 1
		},
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(0, 5000),
	))

	properties.Property("progress never decreases while scrolling down", prop.ForAll(
		func(scrollY, delta, start, length float64) bool {
			end := start + length
			return Progress(scrollY+delta, start, end) >= Progress(scrollY, start, end)
		},
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(0, 2000),
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(1, 5000),
	))

	properties.Property("lerp hits both bounds", prop.ForAll(
		func(lo, hi float64) bool {
			b := [2]float64{lo, hi}
			return lerp(b, 0) == lo && math.Abs(lerp(b, 1)-hi) < 1e-9
		},
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
	))

	properties.TestingRun(t)
}
