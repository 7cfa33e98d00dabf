package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build counts and durations.
type BuildMetrics struct {
	mutex            sync.RWMutex
	totalBuilds      int64
	successfulBuilds int64
	failedBuilds     int64
	totalDuration    time.Duration
	lastDuration     time.Duration
	lastError        string
	lastSuccess      time.Time
	observers        []func(time.Duration, error)
}

// MetricsSnapshot is a point-in-time copy of BuildMetrics.
type MetricsSnapshot struct {
	TotalBuilds      int64         `json:"total_builds"`
	SuccessfulBuilds int64         `json:"successful_builds"`
	FailedBuilds     int64         `json:"failed_builds"`
	AverageDuration  time.Duration `json:"average_duration"`
	LastDuration     time.Duration `json:"last_duration"`
	LastError        string        `json:"last_error,omitempty"`
	LastSuccess      time.Time     `json:"last_success,omitempty"`
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// Observe registers fn to be called after every recorded build, e.g. to
// feed an external metrics registry.
func (bm *BuildMetrics) Observe(fn func(duration time.Duration, err error)) {
	bm.mutex.Lock()
	bm.observers = append(bm.observers, fn)
	bm.mutex.Unlock()
}

// RecordBuild records a build result in the metrics
func (bm *BuildMetrics) RecordBuild(duration time.Duration, err error) {
	bm.mutex.Lock()
	bm.totalBuilds++
	bm.totalDuration += duration
	bm.lastDuration = duration
	if err != nil {
		bm.failedBuilds++
		bm.lastError = err.Error()
	} else {
		bm.successfulBuilds++
		bm.lastError = ""
		bm.lastSuccess = time.Now()
	}
	observers := bm.observers
	bm.mutex.Unlock()

	for _, fn := range observers {
		fn(duration, err)
	}
}

// Snapshot returns a snapshot of current metrics
func (bm *BuildMetrics) Snapshot() MetricsSnapshot {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	s := MetricsSnapshot{
		TotalBuilds:      bm.totalBuilds,
		SuccessfulBuilds: bm.successfulBuilds,
		FailedBuilds:     bm.failedBuilds,
		LastDuration:     bm.lastDuration,
		LastError:        bm.lastError,
		LastSuccess:      bm.lastSuccess,
	}
	if bm.totalBuilds > 0 {
		s.AverageDuration = bm.totalDuration / time.Duration(bm.totalBuilds)
	}
	return s
}

// SuccessRate returns the share of successful builds as a percentage.
func (bm *BuildMetrics) SuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.totalBuilds == 0 {
		return 0
	}
	return float64(bm.successfulBuilds) / float64(bm.totalBuilds) * 100
}
