// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package coordinator implements the in-memory job coordinator: the
// registry, wait queue, split dispatcher, chain resolver, worker
// liveness tracking, and the single-lock facade the HTTP adapter drives.
package coordinator

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/jontk/movableq/pkg/config"
	"github.com/jontk/movableq/pkg/errors"
	"github.com/jontk/movableq/pkg/logging"
	"github.com/jontk/movableq/pkg/metrics"
	"github.com/jontk/movableq/pkg/streaming"
)

// SubmitEntry is one member of a chain as a submitter describes it.
// Only the fields relevant to Kind are read.
type SubmitEntry struct {
	Kind Kind

	FriendCode string

	SystemID string
	Model    string
	Year     int

	ID0  string
	Lfcs string
}

// NetworkStats summarises coordinator-wide counts for the network-stats
// endpoint.
type NetworkStats struct {
	Waiting        int   `json:"waiting"`
	Working        int   `json:"working"`
	LiveMiners     int   `json:"live_miners"`
	LiveFriendbots int   `json:"live_friendbots"`
	ArtifactsMined int64 `json:"artifacts_mined"`
}

// Coordinator is the single entry point composing the registry, queue,
// split dispatcher, worker registry, and artifact store under one
// non-reentrant mutex. Every exported method takes the lock exactly
// once at its own entry and calls only lock-free, lower-case helpers
// from there on; none of those helpers re-enter the lock.
type Coordinator struct {
	mu sync.Mutex

	cfg       *config.Config
	registry  *JobRegistry
	queue     *WaitQueue
	workers   *WorkerRegistry
	artifacts *ArtifactStore
	logger    logging.Logger
	metrics   metrics.JobCollector
	events    *streaming.Hub

	nowFunc func() time.Time
}

// New builds a Coordinator. logger and jobMetrics may be nil, in which
// case a no-op implementation is used for each.
func New(cfg *config.Config, artifacts *ArtifactStore, logger logging.Logger, jobMetrics metrics.JobCollector) *Coordinator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if jobMetrics == nil {
		jobMetrics = &metrics.NoOpJobCollector{}
	}
	return &Coordinator{
		cfg:       cfg,
		registry:  newJobRegistry(),
		queue:     newWaitQueue(),
		workers:   newWorkerRegistry(),
		artifacts: artifacts,
		logger:    logger,
		metrics:   jobMetrics,
		nowFunc:   time.Now,
	}
}

// SetNowFunc overrides the coordinator's time source. Intended for tests
// that need deterministic control over timeouts.
func (c *Coordinator) SetNowFunc(f func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFunc = f
}

// SetEventHub attaches a streaming hub that lifecycle transitions are
// broadcast to, for the admin live event feed. Passing nil disables
// broadcasting.
func (c *Coordinator) SetEventHub(hub *streaming.Hub) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = hub
}

func (c *Coordinator) now() time.Time {
	return c.nowFunc()
}

// broadcast emits ev to the attached event hub, if any. Never blocks on
// slow or absent listeners; see streaming.Hub.Broadcast.
func (c *Coordinator) broadcast(eventType string, job *Job, worker string, now time.Time) {
	if c.events == nil {
		return
	}
	c.events.Broadcast(streaming.Event{
		Type:      eventType,
		JobKey:    job.Key,
		Kind:      string(job.Kind),
		State:     string(job.State),
		Worker:    worker,
		Timestamp: now,
	})
}

// Submit registers a single job, equivalent to a one-member chain.
func (c *Coordinator) Submit(entry SubmitEntry) (string, error) {
	keys, err := c.SubmitChain([]SubmitEntry{entry}, false)
	if err != nil {
		return "", err
	}
	return keys[0], nil
}

// SubmitChain registers an ordered chain of jobs atomically: either every
// member is inserted or none is, per §4.7.
func (c *Coordinator) SubmitChain(entries []SubmitEntry, overwriteCanceled bool) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitChainLocked(entries, overwriteCanceled, c.now())
}

func (c *Coordinator) submitChainLocked(entries []SubmitEntry, overwriteCanceled bool, now time.Time) ([]string, error) {
	if len(entries) == 0 {
		return nil, errors.InvalidInput("job chain must have at least one member")
	}

	jobs := make([]*Job, 0, len(entries))
	keys := make([]string, 0, len(entries))
	var prevKey string

	for i, e := range entries {
		job, err := buildJob(e, i, prevKey, now)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
		keys = append(keys, job.Key)
		prevKey = job.Key
	}

	terminal := jobs[len(jobs)-1]
	if c.artifacts.Exists(terminal.Kind, terminal.Key) {
		c.logger.Debug("chain discarded, terminal artifact already exists", "terminal_key", terminal.Key)
		return keys, nil
	}

	for _, j := range jobs {
		existing, found := c.registry.get(j.Key)
		if !found {
			continue
		}
		if existing.State == StateCanceled && overwriteCanceled {
			continue
		}
		return nil, errors.DuplicateJob(fmt.Sprintf("job %s is already submitted", j.Key))
	}

	for _, j := range jobs {
		if existing, found := c.registry.get(j.Key); found && existing.State == StateCanceled {
			c.registry.delete(j.Key)
			c.queue.remove(j.Key)
		}
		c.registry.put(j)
		c.metrics.RecordSubmitted(string(j.Kind))
		c.broadcast("submitted", j, "", now)
	}

	if jobs[0].State == StateReady {
		c.enqueueLocked(jobs[0].Key, false, now)
	}

	c.autocompleteLocked(keys, now)

	return keys, nil
}

// buildJob validates one chain entry and constructs its job record.
// index is the entry's position in the chain; prevKey is the previous
// member's key, used as the prerequisite for chained msed jobs.
func buildJob(e SubmitEntry, index int, prevKey string, now time.Time) (*Job, error) {
	if index > 0 && e.Kind != KindMsed {
		return nil, errors.InvalidInput(fmt.Sprintf("%s cannot appear after the first position in a chain", e.Kind))
	}

	switch e.Kind {
	case KindFcLfcs:
		if !isFriendCode(e.FriendCode) {
			return nil, errors.InvalidInput("malformed friend code", "invalid:friend_code")
		}
		if isBlacklisted(e.FriendCode) {
			return nil, errors.InvalidInput("friend code is blocklisted", "invalid:friend_code")
		}
		return &Job{
			Key: e.FriendCode, Kind: KindFcLfcs, FriendCode: e.FriendCode,
			State: StateReady, CreatedAt: now, UpdatedAt: now,
		}, nil

	case KindMiiLfcs:
		if !isSystemID(e.SystemID) {
			return nil, errors.InvalidInput("malformed system id", "invalid:system_id")
		}
		if e.Model != "old" && e.Model != "new" {
			return nil, errors.InvalidInput("model must be \"old\" or \"new\"", "invalid:model")
		}
		split, err := newSplitProgress(e.Model, e.Year)
		if err != nil {
			return nil, errors.InvalidInput(err.Error(), "invalid:model")
		}
		return &Job{
			Key: e.SystemID, Kind: KindMiiLfcs, SystemID: e.SystemID, Model: e.Model, Year: e.Year,
			State: StateReady, CreatedAt: now, UpdatedAt: now, Split: split,
		}, nil

	case KindMsed:
		if !isID0(e.ID0) {
			return nil, errors.InvalidInput("malformed id0", "invalid:id0")
		}
		job := &Job{Key: e.ID0, Kind: KindMsed, ID0: e.ID0, CreatedAt: now, UpdatedAt: now}
		if index == 0 {
			if e.Lfcs == "" {
				return nil, errors.InvalidInput("msed job requires lfcs when not chained", "invalid:lfcs")
			}
			job.Lfcs = e.Lfcs
			job.State = StateReady
		} else {
			job.PrereqKey = prevKey
			job.State = StateNeedPrereq
		}
		return job, nil

	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unknown job kind %q", e.Kind), "invalid:type")
	}
}

// enqueueLocked transitions a ready job to waiting and pushes it onto
// the queue; urgent selects push_front over push_back.
func (c *Coordinator) enqueueLocked(key string, urgent bool, now time.Time) {
	job, ok := c.registry.get(key)
	if !ok {
		return
	}
	job.State = StateWaiting
	job.UpdatedAt = now
	if urgent {
		c.queue.pushFront(key)
	} else {
		c.queue.pushBack(key)
	}
}

// autocompleteLocked scans keys for members whose artifact already
// exists on disk and finishes them without worker involvement.
func (c *Coordinator) autocompleteLocked(keys []string, now time.Time) {
	for _, key := range keys {
		job, ok := c.registry.get(key)
		if !ok || job.State == StateDone {
			continue
		}
		if !c.artifacts.Exists(job.Kind, key) {
			continue
		}
		c.finishJobLocked(job, now)
	}
}

// finishJobLocked marks job done, fulfils any dependents waiting on its
// result, and removes it from the registry and queue.
func (c *Coordinator) finishJobLocked(job *Job, now time.Time) {
	job.State = StateDone
	job.UpdatedAt = now
	c.queue.remove(job.Key)

	if job.Kind == KindFcLfcs || job.Kind == KindMiiLfcs {
		if raw, found, err := c.artifacts.Read(job.Kind, job.Key); err == nil && found {
			c.fulfillDependentsLocked(job.Key, hex.EncodeToString(raw), now)
		}
	}

	c.registry.delete(job.Key)
	c.metrics.RecordCompleted(string(job.Kind), now.Sub(job.CreatedAt))
	c.broadcast("completed", job, job.Assignee, now)
}

// fulfillDependentsLocked resolves every need_prereq job whose
// PrereqKey is prereqKey: it receives lfcsHex and becomes ready.
func (c *Coordinator) fulfillDependentsLocked(prereqKey, lfcsHex string, now time.Time) {
	for _, j := range c.registry.all() {
		if j.State == StateNeedPrereq && j.PrereqKey == prereqKey {
			j.Lfcs = lfcsHex
			j.State = StateReady
			j.UpdatedAt = now
			c.enqueueLocked(j.Key, false, now)
		}
	}
}

// Request dequeues the next job acceptable to workerKind/acceptedKinds,
// dispatching a sub-job for mii-lfcs parents. found is false when there
// is no work to offer.
func (c *Coordinator) Request(workerName string, workerKind WorkerKind, ip, version string, acceptedKinds []Kind) (*Job, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.releaseDeadJobsLocked(now)
	c.trimCanceledJobsLocked(now)
	return c.requestLocked(workerName, workerKind, ip, version, acceptedKinds, now)
}

func (c *Coordinator) requestLocked(workerName string, workerKind WorkerKind, ip, version string, acceptedKinds []Kind, now time.Time) (*Job, bool, error) {
	if workerName == "" {
		return nil, false, errors.InvalidInput("worker name is required")
	}
	c.workers.update(workerName, workerKind, ip, version, now)

	for {
		key, ok := c.queue.takeFirst(func(k string) bool {
			j, exists := c.registry.get(k)
			return exists && kindAccepted(j.Kind, acceptedKinds)
		})
		if !ok {
			return nil, false, nil
		}
		job, exists := c.registry.get(key)
		if !exists {
			continue
		}

		if job.isSplitParent() {
			sub, found := job.Split.issue(workerName)
			if !found {
				if len(job.Split.InFlight) == 0 {
					job.State = StateFailed
					job.Note = "search space exhausted without a match"
					job.UpdatedAt = now
					c.metrics.RecordFailed(string(job.Kind))
					c.broadcast("failed", job, "", now)
				}
				continue
			}
			job.State = StateWorking
			job.UpdatedAt = now
			if !job.Split.exhausted() {
				c.queue.pushFront(job.Key)
			}
			out := job.clone()
			out.Assignee = workerName
			out.Offset = sub.Index
			out.Subkey = sub.Subkey
			c.metrics.RecordRequested(string(job.Kind))
			c.broadcast("assigned", job, workerName, now)
			return out, true, nil
		}

		if job.State != StateWaiting {
			continue
		}
		job.State = StateWorking
		job.Assignee = workerName
		job.UpdatedAt = now
		c.metrics.RecordRequested(string(job.Kind))
		c.broadcast("assigned", job, workerName, now)
		return job.clone(), true, nil
	}
}

func kindAccepted(kind Kind, accepted []Kind) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, k := range accepted {
		if k == kind {
			return true
		}
	}
	return false
}

// Release returns an in-progress job (or sub-job) to the queue without
// marking it failed.
func (c *Coordinator) Release(key, subkey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	job, ok := c.registry.get(key)
	if !ok {
		return errors.UnknownJob(fmt.Sprintf("unknown job %s", key))
	}

	if job.isSplitParent() {
		if subkey == "" {
			return errors.InvalidInput("subkey is required to release a split job")
		}
		if !c.releaseSubJobLocked(job, subkey, now) {
			return errors.UnknownJob(fmt.Sprintf("sub-job %s/%s is not in flight", key, subkey))
		}
		return nil
	}

	if job.State != StateWorking {
		return errors.UnknownJob(fmt.Sprintf("job %s is not being worked", key))
	}
	c.releaseJobLocked(job, now)
	return nil
}

func (c *Coordinator) releaseJobLocked(job *Job, now time.Time) {
	worker := job.Assignee
	job.State = StateWaiting
	job.Assignee = ""
	job.UpdatedAt = now
	c.queue.pushFront(job.Key)
	c.metrics.RecordReleased(string(job.Kind))
	c.broadcast("released", job, worker, now)
}

func (c *Coordinator) releaseSubJobLocked(job *Job, subkey string, now time.Time) bool {
	if !job.Split.release(subkey) {
		return false
	}
	if len(job.Split.InFlight) == 0 && job.State == StateWorking {
		job.State = StateWaiting
		job.UpdatedAt = now
		if !c.queue.contains(job.Key) {
			c.queue.pushFront(job.Key)
		}
	}
	c.metrics.RecordReleased(string(job.Kind))
	c.broadcast("released", job, "", now)
	return true
}

// Update records worker liveness against key/subkey. alive is false iff
// the job has been canceled, signalling the worker to abandon it.
func (c *Coordinator) Update(key, subkey string) (alive bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	job, ok := c.registry.get(key)
	if !ok {
		return false, errors.UnknownJob(fmt.Sprintf("unknown job %s", key))
	}
	if job.State == StateCanceled {
		return false, nil
	}
	job.UpdatedAt = now
	return true, nil
}

// Complete persists a worker-submitted result. format is "hex", "b64",
// or "none" (sub-job offsets only).
func (c *Coordinator) Complete(key, subkey, format, result string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	job, ok := c.registry.get(key)
	if !ok {
		return errors.UnknownJob(fmt.Sprintf("unknown job %s", key))
	}

	if job.isSplitParent() {
		return c.completeSplitLocked(job, subkey, format, result, now)
	}

	if job.State != StateWorking {
		return errors.UnknownJob(fmt.Sprintf("job %s is not awaiting completion", key))
	}
	if format == "none" {
		return errors.InvalidInput("format \"none\" is only valid for split sub-jobs")
	}

	raw, err := decodeResult(format, result)
	if err != nil {
		return errors.InvalidInput("malformed result payload")
	}

	switch job.Kind {
	case KindFcLfcs:
		if !validateLfcs(raw) {
			c.releaseJobLocked(job, now)
			return errors.FaultyResult("lfcs result failed validation")
		}
		raw = raw[:5]
	case KindMsed:
		keyY, ok := validateMovable(raw, job.ID0)
		if !ok {
			c.releaseJobLocked(job, now)
			return errors.FaultyResult("msed result failed id0 validation")
		}
		raw = keyY
	}

	if err := c.artifacts.Save(job.Kind, job.Key, raw); err != nil {
		return errors.Internal("failed to persist artifact", err)
	}

	c.finishJobLocked(job, now)
	return nil
}

func (c *Coordinator) completeSplitLocked(job *Job, subkey, format, result string, now time.Time) error {
	if _, ok := job.Split.InFlight[subkey]; !ok {
		return errors.UnknownJob(fmt.Sprintf("sub-job %s/%s is not in flight", job.Key, subkey))
	}

	if format == "none" {
		job.Split.completeNone(subkey)
		if job.Split.exhausted() {
			job.State = StateFailed
			job.Note = "search space exhausted without a match"
			job.UpdatedAt = now
			c.queue.remove(job.Key)
			c.metrics.RecordFailed(string(job.Kind))
			c.broadcast("failed", job, "", now)
		}
		return nil
	}

	raw, err := decodeResult(format, result)
	if err != nil {
		return errors.InvalidInput("malformed result payload")
	}
	if !validateLfcs(raw) {
		c.releaseSubJobLocked(job, subkey, now)
		return errors.FaultyResult("lfcs result failed validation")
	}
	raw = raw[:5]

	if err := c.artifacts.Save(KindMiiLfcs, job.Key, raw); err != nil {
		return errors.Internal("failed to persist artifact", err)
	}
	delete(job.Split.InFlight, subkey)
	c.finishJobLocked(job, now)
	return nil
}

func decodeResult(format, result string) ([]byte, error) {
	switch format {
	case "hex":
		return hex.DecodeString(result)
	case "b64":
		return base64.StdEncoding.DecodeString(result)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown result format %q", format)
	}
}

// Fail marks a job (or sub-job) failed with note. A sub-job failure is
// handled per cfg.ReleaseSubJobOnFail: either reissued (release) or the
// whole parent is failed.
func (c *Coordinator) Fail(key, subkey, note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	job, ok := c.registry.get(key)
	if !ok {
		return errors.UnknownJob(fmt.Sprintf("unknown job %s", key))
	}

	if job.isSplitParent() {
		if _, ok := job.Split.InFlight[subkey]; !ok {
			return errors.UnknownJob(fmt.Sprintf("sub-job %s/%s is not in flight", key, subkey))
		}
		if c.cfg.ReleaseSubJobOnFail {
			c.releaseSubJobLocked(job, subkey, now)
			return nil
		}
		job.State = StateFailed
		job.Note = note
		job.UpdatedAt = now
		c.queue.remove(job.Key)
		c.metrics.RecordFailed(string(job.Kind))
		c.broadcast("failed", job, "", now)
		return nil
	}

	if job.State != StateWorking {
		return errors.UnknownJob(fmt.Sprintf("job %s is not being worked", key))
	}
	job.State = StateFailed
	job.Note = note
	job.UpdatedAt = now
	c.metrics.RecordFailed(string(job.Kind))
	c.broadcast("failed", job, "", now)
	return nil
}

// Cancel moves any non-terminal job to canceled.
func (c *Coordinator) Cancel(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.releaseDeadJobsLocked(now)
	c.trimCanceledJobsLocked(now)

	job, ok := c.registry.get(key)
	if !ok {
		return errors.UnknownJob(fmt.Sprintf("unknown job %s", key))
	}
	if job.State.IsTerminal() {
		return errors.InvalidInput(fmt.Sprintf("job %s is already terminal", key))
	}
	job.State = StateCanceled
	job.Assignee = ""
	job.UpdatedAt = now
	c.queue.remove(key)
	c.broadcast("canceled", job, "", now)
	return nil
}

// Reset moves a canceled job back through submitted into ready (or
// need_prereq) and, when ready, enqueues it onto the wait queue — the
// combined effect of the source's separate submitted/prepare/queue
// transitions, which the facade's public surface does not expose
// individually.
func (c *Coordinator) Reset(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	job, ok := c.registry.get(key)
	if !ok {
		return errors.UnknownJob(fmt.Sprintf("unknown job %s", key))
	}
	if job.State != StateCanceled {
		return errors.InvalidInput(fmt.Sprintf("job %s is not canceled", key))
	}

	job.State = StateSubmitted
	newState := prepareState(job)
	job.State = newState
	job.UpdatedAt = now
	if newState == StateReady {
		c.enqueueLocked(job.Key, false, now)
	}
	return nil
}

func prepareState(job *Job) State {
	if job.Kind == KindMsed && job.PrereqKey != "" && job.Lfcs == "" {
		return StateNeedPrereq
	}
	return StateReady
}

// Delete removes a job unconditionally.
func (c *Coordinator) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.registry.has(key) {
		return errors.UnknownJob(fmt.Sprintf("unknown job %s", key))
	}
	c.registry.delete(key)
	c.queue.remove(key)
	return nil
}

// Status reports a key's state, "done" if only its artifact survives,
// or "nonexistent".
func (c *Coordinator) Status(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if job, ok := c.registry.get(key); ok {
		return string(job.State)
	}
	kind := classify(key)
	if kind != KindInvalid && c.artifacts.Exists(kind, key) {
		return string(StateDone)
	}
	return "nonexistent"
}

// ListJobs returns a snapshot of every registered job.
func (c *Coordinator) ListJobs() []*Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	jobs := c.registry.all()
	out := make([]*Job, len(jobs))
	for i, j := range jobs {
		out[i] = j.clone()
	}
	return out
}

// ListWorkers returns a snapshot of workers matching kind (empty for
// any) and, if liveOnly, excludes timed-out workers.
func (c *Coordinator) ListWorkers(kind WorkerKind, liveOnly bool) []*Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	workers := c.workers.list(kind, liveOnly, now, c.cfg.WorkerTimeout)
	out := make([]*Worker, len(workers))
	for i, w := range workers {
		out[i] = w.clone()
	}
	return out
}

// NetworkStats reports waiting/working job counts, live worker counts,
// and total artifacts persisted this process's lifetime.
func (c *Coordinator) NetworkStats() NetworkStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	stats := NetworkStats{
		LiveMiners:     c.workers.countLive(WorkerMiiner, now, c.cfg.WorkerTimeout),
		LiveFriendbots: c.workers.countLive(WorkerFriendbot, now, c.cfg.WorkerTimeout),
		ArtifactsMined: c.artifacts.Count(),
	}
	for _, j := range c.registry.all() {
		switch j.State {
		case StateWaiting:
			stats.Waiting++
		case StateWorking:
			stats.Working++
		}
	}
	return stats
}

// ReleaseDeadJobs runs the 5-minute working-job liveness sweep and
// returns the keys it released. Safe to call on a ticker in addition to
// the opportunistic calls Request/Cancel already make.
func (c *Coordinator) ReleaseDeadJobs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseDeadJobsLocked(c.now())
}

func (c *Coordinator) releaseDeadJobsLocked(now time.Time) []string {
	var stale []string
	for _, j := range c.registry.all() {
		if j.State == StateWorking && now.Sub(j.UpdatedAt) > c.cfg.JobTimeout {
			stale = append(stale, j.Key)
		}
	}
	for _, key := range stale {
		job, ok := c.registry.get(key)
		if !ok {
			continue
		}
		if job.isSplitParent() {
			for subkey := range job.Split.InFlight {
				c.releaseSubJobLocked(job, subkey, now)
			}
		} else {
			c.releaseJobLocked(job, now)
		}
	}
	return stale
}

// TrimCanceledJobs runs the 5-minute canceled-job trim sweep and returns
// the keys it deleted. Explicit two-pass collect-then-delete: the keys
// are gathered in one iteration over the registry, then deleted by key
// in a second pass, so mutating the registry mid-scan never happens.
func (c *Coordinator) TrimCanceledJobs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trimCanceledJobsLocked(c.now())
}

func (c *Coordinator) trimCanceledJobsLocked(now time.Time) []string {
	var stale []string
	for _, j := range c.registry.all() {
		if j.State == StateCanceled && now.Sub(j.UpdatedAt) > c.cfg.CanceledJobLifetime {
			stale = append(stale, j.Key)
		}
	}
	for _, key := range stale {
		c.registry.delete(key)
		c.queue.remove(key)
	}
	return stale
}
