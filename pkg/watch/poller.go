// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package watch provides a polling-based way to observe job state changes
// without holding a connection open to the coordinator. The CLI uses it to
// follow a submitted chain to completion by repeatedly calling the status
// endpoint and diffing against what it last saw.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/jontk/movableq/pkg/retry"
)

// pollRetryDelay and pollRetryAttempts bound how hard a single poll cycle
// retries a transient listFunc failure (a dropped connection to the
// coordinator) before giving up and waiting for the next ticker tick.
const (
	pollRetryDelay    = 250 * time.Millisecond
	pollRetryAttempts = 3
)

// DefaultPollInterval is the default polling interval for job status watches.
const DefaultPollInterval = 5 * time.Second

// JobStatus is a snapshot of a single job's state, as returned by the
// coordinator's status endpoints.
type JobStatus struct {
	Key   string
	State string
}

// JobEvent describes a change observed between two polls of a job's status.
type JobEvent struct {
	EventType     string // "job_new", "job_state_change", "job_gone"
	Key           string
	PreviousState string
	NewState      string
	EventTime     time.Time
}

// ListFunc fetches the current status of the jobs being watched.
type ListFunc func(ctx context.Context) ([]JobStatus, error)

// JobPoller polls a coordinator status endpoint and emits events for any
// state transitions it observes between polls.
type JobPoller struct {
	listFunc     ListFunc
	pollInterval time.Duration
	bufferSize   int
	mu           sync.RWMutex
	jobStates    map[string]string
}

// NewJobPoller creates a new job poller.
func NewJobPoller(listFunc ListFunc) *JobPoller {
	return &JobPoller{
		listFunc:     listFunc,
		pollInterval: DefaultPollInterval,
		bufferSize:   100,
		jobStates:    make(map[string]string),
	}
}

// WithPollInterval sets a custom poll interval.
func (p *JobPoller) WithPollInterval(interval time.Duration) *JobPoller {
	p.pollInterval = interval
	return p
}

// WithBufferSize sets a custom buffer size for the event channel.
func (p *JobPoller) WithBufferSize(size int) *JobPoller {
	p.bufferSize = size
	return p
}

// Watch starts polling and returns a channel of events. The channel is
// closed when ctx is canceled.
func (p *JobPoller) Watch(ctx context.Context) <-chan JobEvent {
	eventChan := make(chan JobEvent, p.bufferSize)
	go p.pollLoop(ctx, eventChan)
	return eventChan
}

func (p *JobPoller) pollLoop(ctx context.Context, eventChan chan<- JobEvent) {
	defer close(eventChan)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.performPoll(ctx, eventChan, true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.performPoll(ctx, eventChan, false)
		}
	}
}

func (p *JobPoller) performPoll(ctx context.Context, eventChan chan<- JobEvent, isInitial bool) {
	statuses, err := retry.RetryWithResult(ctx, retry.NewConstantBackoff(pollRetryDelay, pollRetryAttempts), func() ([]JobStatus, error) {
		return p.listFunc(ctx)
	})
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(statuses))

	for _, status := range statuses {
		seen[status.Key] = true
		previous, exists := p.jobStates[status.Key]

		if !exists {
			p.jobStates[status.Key] = status.State
			if !isInitial {
				eventChan <- JobEvent{
					EventType: "job_new",
					Key:       status.Key,
					NewState:  status.State,
					EventTime: time.Now(),
				}
			}
			continue
		}

		if previous != status.State {
			p.jobStates[status.Key] = status.State
			eventChan <- JobEvent{
				EventType:     "job_state_change",
				Key:           status.Key,
				PreviousState: previous,
				NewState:      status.State,
				EventTime:     time.Now(),
			}
		}
	}

	for key, state := range p.jobStates {
		if !seen[key] {
			delete(p.jobStates, key)
			eventChan <- JobEvent{
				EventType:     "job_gone",
				Key:           key,
				PreviousState: state,
				EventTime:     time.Now(),
			}
		}
	}
}

// IsTerminal reports whether state is one the coordinator will never
// transition out of on its own (done, failed, canceled).
func IsTerminal(state string) bool {
	switch state {
	case "done", "failed", "canceled":
		return true
	default:
		return false
	}
}
