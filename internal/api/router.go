// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jontk/movableq/internal/coordinator"
	"github.com/jontk/movableq/pkg/adminauth"
	"github.com/jontk/movableq/pkg/config"
	"github.com/jontk/movableq/pkg/logging"
	"github.com/jontk/movableq/pkg/streaming"
)

// NewRouter builds the coordinator's complete HTTP surface: job
// submission and dispatch, network stats, raw artifact download, and
// the basic-auth-gated admin listings. hub may be nil, in which case
// the admin live event stream route is omitted.
func NewRouter(coord *coordinator.Coordinator, artifacts *coordinator.ArtifactStore, cfg *config.Config, admin *adminauth.Verifier, hub *streaming.Hub, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	h := &handlers{coord: coord, artifacts: artifacts, cfg: cfg, logger: logger}

	router := mux.NewRouter().StrictSlash(false)
	router.Use(withRequestID)
	router.Use(withLogging(logger))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/submit_job_chain", h.submitJobChain).Methods(http.MethodPost)
	api.HandleFunc("/request_job", h.requestJob).Methods(http.MethodGet)

	api.HandleFunc("/update_job/{key}", h.updateJob).Methods(http.MethodGet)
	api.HandleFunc("/update_job/{key}/{subkey}", h.updateJob).Methods(http.MethodGet)

	api.HandleFunc("/release_job/{key}", h.releaseJob).Methods(http.MethodGet)
	api.HandleFunc("/release_job/{key}/{subkey}", h.releaseJob).Methods(http.MethodGet)

	api.HandleFunc("/cancel_job/{key}", h.cancelJob).Methods(http.MethodGet)
	api.HandleFunc("/reset_job/{key}", h.resetJob).Methods(http.MethodGet)

	api.HandleFunc("/complete_job/{key}", h.completeJob).Methods(http.MethodPost)
	api.HandleFunc("/complete_job/{key}/{subkey}", h.completeJob).Methods(http.MethodPost)

	api.HandleFunc("/fail_job/{key}", h.failJob).Methods(http.MethodPost)
	api.HandleFunc("/fail_job/{key}/{subkey}", h.failJob).Methods(http.MethodPost)

	api.HandleFunc("/check_job_statuses/{keys}", h.checkJobStatuses).Methods(http.MethodGet)
	api.HandleFunc("/check_network_stats", h.checkNetworkStats).Methods(http.MethodGet)

	router.HandleFunc("/download_movable/{id0}", h.downloadMovable).Methods(http.MethodGet)

	adminRouter := api.PathPrefix("/admin").Subrouter()
	if admin != nil {
		adminRouter.Use(admin.Middleware)
	}
	adminRouter.HandleFunc("/list_jobs", h.adminListJobs).Methods(http.MethodGet)
	adminRouter.HandleFunc("/list_workers", h.adminListWorkers).Methods(http.MethodGet)
	adminRouter.HandleFunc("/list_miners", h.adminListMiners).Methods(http.MethodGet)
	adminRouter.HandleFunc("/list_friendbots", h.adminListFriendbots).Methods(http.MethodGet)
	if hub != nil {
		adminRouter.HandleFunc("/stream", hub.ServeWS).Methods(http.MethodGet)
	}

	return router
}
