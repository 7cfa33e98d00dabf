//go:build property

package watcher

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates batching invariants of the debouncer.
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	flushOf := func(indices []int) []ChangeEvent {
		d := &Debouncer{output: make(chan []ChangeEvent, 1)}
		for i, idx := range indices {
			d.pending = append(d.pending, ChangeEvent{
				Type: EventType(i % 4),
				Path: fmt.Sprintf("src/file%d.js", idx),
			})
		}
		d.flush()
		select {
		case batch := <-d.output:
			return batch
		default:
			return nil
		}
	}

	properties.Property("a batch holds each path exactly once", prop.ForAll(
		func(indices []int) bool {
			batch := flushOf(indices)
			distinct := make(map[int]bool)
			for _, idx := range indices {
				distinct[idx] = true
			}
			seen := make(map[string]bool)
			for _, e := range batch {
				if seen[e.Path] {
					return false
				}
				seen[e.Path] = true
			}
			return len(batch) == len(distinct)
		},
		gen.SliceOf(gen.IntRange(0, 8)),
	))

	properties.Property("the last event for a path wins", prop.ForAll(
		func(indices []int) bool {
			last := make(map[string]EventType)
			for i, idx := range indices {
				last[fmt.Sprintf("src/file%d.js", idx)] = EventType(i % 4)
			}
			for _, e := range flushOf(indices) {
				if last[e.Path] != e.Type {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 8)),
	))

	properties.Property("paths keep first-seen order", prop.ForAll(
		func(indices []int) bool {
			var order []string
			seen := make(map[string]bool)
			for _, idx := range indices {
				p := fmt.Sprintf("src/file%d.js", idx)
				if !seen[p] {
					seen[p] = true
					order = append(order, p)
				}
			}
			batch := flushOf(indices)
			if len(batch) != len(order) {
				return false
			}
			for i, e := range batch {
				if e.Path != order[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 8)),
	))

	properties.TestingRun(t)
}
