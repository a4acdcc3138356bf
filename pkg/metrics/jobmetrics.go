// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// JobCollector records coordinator job-lifecycle events, as distinct from
// the HTTP-call metrics Collector tracks for the mirror client.
type JobCollector interface {
	RecordSubmitted(kind string)
	RecordRequested(kind string)
	RecordCompleted(kind string, duration time.Duration)
	RecordFailed(kind string)
	RecordReleased(kind string)

	GetJobStats() *JobStats
	Reset()
}

// JobStats is a snapshot of job-lifecycle counters.
type JobStats struct {
	SubmittedByKind map[string]int64
	RequestedByKind map[string]int64
	CompletedByKind map[string]int64
	FailedByKind    map[string]int64
	ReleasedByKind  map[string]int64
	TurnaroundStats DurationStats
}

// InMemoryJobCollector is an in-memory implementation of JobCollector.
type InMemoryJobCollector struct {
	mu sync.RWMutex

	submitted  map[string]*int64
	requested  map[string]*int64
	completed  map[string]*int64
	failed     map[string]*int64
	released   map[string]*int64
	turnaround *durationAggregator
}

// NewInMemoryJobCollector creates a new in-memory job metrics collector.
func NewInMemoryJobCollector() *InMemoryJobCollector {
	return &InMemoryJobCollector{
		submitted:  make(map[string]*int64),
		requested:  make(map[string]*int64),
		completed:  make(map[string]*int64),
		failed:     make(map[string]*int64),
		released:   make(map[string]*int64),
		turnaround: newDurationAggregator(),
	}
}

func (c *InMemoryJobCollector) RecordSubmitted(kind string) {
	incrementMapCounter(&c.mu, c.submitted, kind)
}

func (c *InMemoryJobCollector) RecordRequested(kind string) {
	incrementMapCounter(&c.mu, c.requested, kind)
}

func (c *InMemoryJobCollector) RecordCompleted(kind string, duration time.Duration) {
	incrementMapCounter(&c.mu, c.completed, kind)
	c.turnaround.add(duration)
}

func (c *InMemoryJobCollector) RecordFailed(kind string) {
	incrementMapCounter(&c.mu, c.failed, kind)
}

func (c *InMemoryJobCollector) RecordReleased(kind string) {
	incrementMapCounter(&c.mu, c.released, kind)
}

func (c *InMemoryJobCollector) GetJobStats() *JobStats {
	return &JobStats{
		SubmittedByKind: c.copyMapCounters(c.submitted),
		RequestedByKind: c.copyMapCounters(c.requested),
		CompletedByKind: c.copyMapCounters(c.completed),
		FailedByKind:    c.copyMapCounters(c.failed),
		ReleasedByKind:  c.copyMapCounters(c.released),
		TurnaroundStats: c.turnaround.stats(),
	}
}

func (c *InMemoryJobCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitted = make(map[string]*int64)
	c.requested = make(map[string]*int64)
	c.completed = make(map[string]*int64)
	c.failed = make(map[string]*int64)
	c.released = make(map[string]*int64)
	c.turnaround = newDurationAggregator()
}

func (c *InMemoryJobCollector) copyMapCounters(m map[string]*int64) map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64, len(m))
	for k, v := range m {
		result[k] = atomic.LoadInt64(v)
	}
	return result
}

// NoOpJobCollector is a no-op implementation of JobCollector.
type NoOpJobCollector struct{}

func (NoOpJobCollector) RecordSubmitted(kind string)                        {}
func (NoOpJobCollector) RecordRequested(kind string)                        {}
func (NoOpJobCollector) RecordCompleted(kind string, duration time.Duration) {}
func (NoOpJobCollector) RecordFailed(kind string)                           {}
func (NoOpJobCollector) RecordReleased(kind string)                         {}
func (NoOpJobCollector) GetJobStats() *JobStats                             { return &JobStats{} }
func (NoOpJobCollector) Reset()                                             {}

var defaultJobCollector JobCollector = &NoOpJobCollector{}

// SetDefaultJobCollector sets the package-level default job metrics collector.
func SetDefaultJobCollector(collector JobCollector) {
	if collector == nil {
		collector = &NoOpJobCollector{}
	}
	defaultJobCollector = collector
}

// GetDefaultJobCollector returns the package-level default job metrics collector.
func GetDefaultJobCollector() JobCollector {
	return defaultJobCollector
}
