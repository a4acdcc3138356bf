// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobPoller_DetectsNewAndStateChangeAndGone(t *testing.T) {
	var mu sync.Mutex
	responses := [][]JobStatus{
		{{Key: "fc_lfcs:abc123", State: "working"}},
		{{Key: "fc_lfcs:abc123", State: "done"}},
		{},
	}
	call := 0

	listFunc := func(ctx context.Context) ([]JobStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		if call >= len(responses) {
			return responses[len(responses)-1], nil
		}
		r := responses[call]
		call++
		return r, nil
	}

	poller := NewJobPoller(listFunc).WithPollInterval(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	events := poller.Watch(ctx)

	var seen []JobEvent
	for ev := range events {
		seen = append(seen, ev)
	}

	require.NotEmpty(t, seen)
	var gotStateChange, gotGone bool
	for _, ev := range seen {
		if ev.EventType == "job_state_change" && ev.NewState == "done" {
			gotStateChange = true
		}
		if ev.EventType == "job_gone" {
			gotGone = true
		}
	}
	assert.True(t, gotStateChange, "expected a job_state_change event to done")
	assert.True(t, gotGone, "expected a job_gone event once the job drops out of the list")
}

func TestJobPoller_ListErrorIsIgnored(t *testing.T) {
	listFunc := func(ctx context.Context) ([]JobStatus, error) {
		return nil, assert.AnError
	}

	poller := NewJobPoller(listFunc).WithPollInterval(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	events := poller.Watch(ctx)
	for range events {
		t.Fatal("expected no events when listFunc always errors")
	}
}

func TestJobPoller_RetriesTransientListFuncFailureWithinAPoll(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	listFunc := func(ctx context.Context) ([]JobStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return nil, assert.AnError
		}
		return []JobStatus{{Key: "fc_lfcs:abc123", State: "working"}}, nil
	}

	poller := NewJobPoller(listFunc).WithPollInterval(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	for range poller.Watch(ctx) {
		// the initial poll never emits job_new; draining just waits for ctx to end
	}

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, attempts, 2, "expected the poller to retry the failing call within its first poll")
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{"done", true},
		{"failed", true},
		{"canceled", true},
		{"working", false},
		{"waiting", false},
		{"ready", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTerminal(tt.state), tt.state)
	}
}
