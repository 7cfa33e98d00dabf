// Package metrics exposes dev server and build observability hooks.
package metrics

import "time"

// Outcome labels a finished build.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Recorder defines observability hooks for builds, the reload channel and
// served requests. All implementations must be safe for concurrent use.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome Outcome)
	SetReloadClients(n int)
	IncReloadBroadcast()
	IncRequest(route string, status int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) IncBuildOutcome(Outcome)            {}
func (NoopRecorder) SetReloadClients(int)               {}
func (NoopRecorder) IncReloadBroadcast()                {}
func (NoopRecorder) IncRequest(string, int)             {}
