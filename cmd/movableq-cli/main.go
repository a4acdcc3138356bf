// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command movableq-cli submits job chains to a running coordinator and
// follows them to completion by polling /api/check_job_statuses.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jontk/movableq/pkg/watch"
)

type submitEntry struct {
	Type       string `json:"type"`
	FriendCode string `json:"friend_code,omitempty"`
	SystemID   string `json:"system_id,omitempty"`
	Model      string `json:"model,omitempty"`
	Year       int    `json:"year,omitempty"`
	ID0        string `json:"id0,omitempty"`
	Lfcs       string `json:"lfcs,omitempty"`
}

type submitChainRequest struct {
	Chain             []submitEntry `json:"chain"`
	OverwriteCanceled bool          `json:"overwrite_canceled"`
}

type envelope struct {
	Result  string          `json:"result"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

func main() {
	var (
		baseURL   string
		chainFile string
		follow    bool
		interval  time.Duration
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "coordinator base URL")
	flag.StringVar(&chainFile, "chain", "-", "path to a JSON chain submission (\"-\" for stdin)")
	flag.BoolVar(&follow, "follow", true, "poll job status until every member reaches a terminal state")
	flag.DurationVar(&interval, "interval", watch.DefaultPollInterval, "poll interval when following")
	flag.Parse()

	raw, err := readChainFile(chainFile)
	if err != nil {
		log.Fatalf("reading chain: %v", err)
	}

	var req submitChainRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Fatalf("parsing chain: %v", err)
	}

	keys, err := submitChain(baseURL, req)
	if err != nil {
		log.Fatalf("submit_job_chain: %v", err)
	}
	fmt.Printf("submitted %d job(s): %s\n", len(keys), strings.Join(keys, ", "))

	if !follow {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := watch.NewJobPoller(func(ctx context.Context) ([]watch.JobStatus, error) {
		return checkStatuses(ctx, baseURL, keys)
	}).WithPollInterval(interval)

	terminal := make(map[string]bool, len(keys))
	for event := range poller.Watch(ctx) {
		fmt.Printf("[%s] %s: %s -> %s\n", event.EventTime.Format(time.RFC3339), event.Key, event.PreviousState, event.NewState)
		if watch.IsTerminal(event.NewState) {
			terminal[event.Key] = true
		}
		if len(terminal) == len(keys) {
			return
		}
	}
}

func readChainFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func submitChain(baseURL string, req submitChainRequest) ([]string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(baseURL+"/api/submit_job_chain", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if env.Result != "ok" {
		return nil, fmt.Errorf("coordinator rejected chain: %s", env.Message)
	}

	var keys []string
	if err := json.Unmarshal(env.Data, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func checkStatuses(ctx context.Context, baseURL string, keys []string) ([]watch.JobStatus, error) {
	url := baseURL + "/api/check_job_statuses/" + strings.Join(keys, ",")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if env.Result != "ok" {
		return nil, fmt.Errorf("coordinator error: %s", env.Message)
	}

	var statuses map[string]string
	if err := json.Unmarshal(env.Data, &statuses); err != nil {
		return nil, err
	}

	out := make([]watch.JobStatus, 0, len(statuses))
	for key, state := range statuses {
		out = append(out, watch.JobStatus{Key: key, State: state})
	}
	return out, nil
}
