// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jontk/movableq/internal/coordinator"
	"github.com/jontk/movableq/pkg/config"
	"github.com/jontk/movableq/pkg/errors"
	"github.com/jontk/movableq/pkg/logging"
)

var titleCaser = cases.Title(language.English)

// workerView is a worker record as shown to an admin: the raw kind
// string the coordinator stores lowercase ("miiner", "friendbot") is
// title-cased for display.
type workerView struct {
	Name       string `json:"name"`
	IP         string `json:"ip,omitempty"`
	Kind       string `json:"kind"`
	Version    string `json:"version,omitempty"`
	LastUpdate string `json:"last_update"`
}

func newWorkerView(w *coordinator.Worker) workerView {
	return workerView{
		Name:       w.Name,
		IP:         w.IP,
		Kind:       titleCaser.String(string(w.Kind)),
		Version:    w.Version,
		LastUpdate: w.LastUpdate.Format(time.RFC3339),
	}
}

func newWorkerViews(workers []*coordinator.Worker) []workerView {
	out := make([]workerView, len(workers))
	for i, w := range workers {
		out[i] = newWorkerView(w)
	}
	return out
}

// jobView mirrors coordinator.Job for admin display, title-casing the
// mii-lfcs console model ("old"/"new") the same way workerView
// title-cases worker kind.
type jobView struct {
	*coordinator.Job
	Model string `json:"model,omitempty"`
}

func newJobView(j *coordinator.Job) jobView {
	v := jobView{Job: j}
	if j.Model != "" {
		v.Model = titleCaser.String(j.Model)
	}
	return v
}

func newJobViews(jobs []*coordinator.Job) []jobView {
	out := make([]jobView, len(jobs))
	for i, j := range jobs {
		out[i] = newJobView(j)
	}
	return out
}

// handlers holds the dependencies every route needs. Its methods are
// registered directly as mux handlers; none of them touch the
// coordinator's lock directly, only its exported facade methods.
type handlers struct {
	coord     *coordinator.Coordinator
	artifacts *coordinator.ArtifactStore
	cfg       *config.Config
	logger    logging.Logger
}

// submitEntryWire is one chain member as submitted over the wire.
type submitEntryWire struct {
	Type       string `json:"type"`
	FriendCode string `json:"friend_code,omitempty"`
	SystemID   string `json:"system_id,omitempty"`
	Model      string `json:"model,omitempty"`
	Year       int    `json:"year,omitempty"`
	ID0        string `json:"id0,omitempty"`
	Lfcs       string `json:"lfcs,omitempty"`
}

// submitChainRequest is the submit_job_chain request body: the ordered
// chain plus the overwrite_canceled flag the chain resolver's duplicate
// check consults.
type submitChainRequest struct {
	Chain             []submitEntryWire `json:"chain"`
	OverwriteCanceled bool              `json:"overwrite_canceled"`
}

func (h *handlers) submitJobChain(w http.ResponseWriter, r *http.Request) {
	var body submitChainRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, r, h.logger, errors.InvalidInput("malformed request body"))
		return
	}

	entries := make([]coordinator.SubmitEntry, len(body.Chain))
	for i, e := range body.Chain {
		entries[i] = coordinator.SubmitEntry{
			Kind:       coordinator.Kind(e.Type),
			FriendCode: e.FriendCode,
			SystemID:   e.SystemID,
			Model:      e.Model,
			Year:       e.Year,
			ID0:        e.ID0,
			Lfcs:       e.Lfcs,
		}
	}

	keys, err := h.coord.SubmitChain(entries, body.OverwriteCanceled)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, keys)
}

func (h *handlers) requestJob(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	version := strings.TrimSpace(q.Get("version"))
	if name == "" || version == "" {
		writeError(w, r, h.logger, errors.InvalidInput("name and version are required"))
		return
	}

	workerKind, kinds, err := resolveRequest(h.cfg, version, q.Get("types"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	job, found, err := h.coord.Request(name, workerKind, clientIP(r), version, kinds)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeData(w, nil)
		return
	}
	writeData(w, job)
}

func (h *handlers) updateJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	alive, err := h.coord.Update(vars["key"], vars["subkey"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !alive {
		writeData(w, map[string]string{"status": "canceled"})
		return
	}
	writeData(w, map[string]string{})
}

func (h *handlers) releaseJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.coord.Release(vars["key"], vars["subkey"]); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, map[string]string{})
}

func (h *handlers) cancelJob(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := h.coord.Cancel(key); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, map[string]string{})
}

func (h *handlers) resetJob(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := h.coord.Reset(key); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, map[string]string{})
}

type completeJobRequest struct {
	Format string `json:"format"`
	Result string `json:"result"`
}

func (h *handlers) completeJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body completeJobRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, r, h.logger, errors.InvalidInput("malformed request body"))
		return
	}
	if err := h.coord.Complete(vars["key"], vars["subkey"], body.Format, body.Result); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, map[string]string{})
}

type failJobRequest struct {
	Note string `json:"note"`
}

func (h *handlers) failJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body failJobRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, r, h.logger, errors.InvalidInput("malformed request body"))
		return
	}
	if err := h.coord.Fail(vars["key"], vars["subkey"], body.Note); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, map[string]string{})
}

func (h *handlers) checkJobStatuses(w http.ResponseWriter, r *http.Request) {
	csv := mux.Vars(r)["keys"]
	statuses := make(map[string]string)
	for _, key := range strings.Split(csv, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		statuses[key] = h.coord.Status(key)
	}
	writeData(w, statuses)
}

func (h *handlers) checkNetworkStats(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.coord.NetworkStats())
}

func (h *handlers) downloadMovable(w http.ResponseWriter, r *http.Request) {
	id0 := mux.Vars(r)["id0"]

	raw, found, err := h.artifacts.Read(coordinator.KindMsed, id0)
	if err != nil {
		writeError(w, r, h.logger, errors.Internal("failed to read artifact", err))
		return
	}
	if !found {
		if mirrored, ok := h.artifacts.ReadMsedFromMirror(id0); ok {
			raw = mirrored
			found = true
		}
	}
	if !found {
		writeError(w, r, h.logger, errors.UnknownJob("no msed artifact for "+id0))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (h *handlers) adminListJobs(w http.ResponseWriter, r *http.Request) {
	writeData(w, newJobViews(h.coord.ListJobs()))
}

func (h *handlers) adminListWorkers(w http.ResponseWriter, r *http.Request) {
	writeData(w, newWorkerViews(h.coord.ListWorkers("", false)))
}

func (h *handlers) adminListMiners(w http.ResponseWriter, r *http.Request) {
	writeData(w, newWorkerViews(h.coord.ListWorkers(coordinator.WorkerMiiner, false)))
}

func (h *handlers) adminListFriendbots(w http.ResponseWriter, r *http.Request) {
	writeData(w, newWorkerViews(h.coord.ListWorkers(coordinator.WorkerFriendbot, false)))
}
