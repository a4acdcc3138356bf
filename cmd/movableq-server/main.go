// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command movableq-server runs the job coordinator's HTTP surface:
// submission, dispatch, and admin listings for the volunteer GPU
// key-recovery network.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jontk/movableq/internal/api"
	"github.com/jontk/movableq/internal/coordinator"
	"github.com/jontk/movableq/internal/mirror"
	"github.com/jontk/movableq/pkg/adminauth"
	"github.com/jontk/movableq/pkg/config"
	"github.com/jontk/movableq/pkg/logging"
	"github.com/jontk/movableq/pkg/metrics"
	"github.com/jontk/movableq/pkg/streaming"
)

func main() {
	cfg := config.NewDefault()
	cfg.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.NewLogger(logging.DefaultConfig())

	var mirrorClient *mirror.Client
	if cfg.MirrorEnabled {
		mirrorClient = mirror.NewClient(cfg.MirrorBase, cfg.MirrorEndpoint, logger)
	}

	var mirrorLookup interface {
		FetchMsed(ctx context.Context, key string) ([]byte, error)
	}
	if mirrorClient != nil {
		mirrorLookup = mirrorClient
	}

	store := coordinator.NewArtifactStore(cfg.FcLfcsPath, cfg.SidLfcsPath, cfg.MsedPath, mirrorLookup, logger)
	logger.Info("artifact store loaded", "artifact_count", store.Count())

	jobMetrics := metrics.NewInMemoryJobCollector()
	coord := coordinator.New(cfg, store, logger, jobMetrics)
	admin := adminauth.NewVerifier(cfg.AdminUser, cfg.AdminPass)

	hub := streaming.NewHub()
	coord.SetEventHub(hub)

	router := api.NewRouter(coord, store, cfg, admin, hub, logger)

	server := &http.Server{
		Addr:         cfg.HostAddr + ":" + cfg.HostPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runLivenessSweeps(ctx, coord, mirrorClient, logger)

	go func() {
		logger.Info("coordinator listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server exited unexpectedly", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err.Error())
	}
}

// runLivenessSweeps periodically releases timed-out working jobs and
// trims expired canceled jobs, in addition to the opportunistic sweeps
// the coordinator already runs at the top of Request and Cancel. It also
// logs the mirror client's outbound-request metrics, when a mirror is
// configured.
func runLivenessSweeps(ctx context.Context, coord *coordinator.Coordinator, mirrorClient *mirror.Client, logger logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if released := coord.ReleaseDeadJobs(); len(released) > 0 {
				logger.Info("released dead jobs", "count", len(released))
			}
			if trimmed := coord.TrimCanceledJobs(); len(trimmed) > 0 {
				logger.Info("trimmed canceled jobs", "count", len(trimmed))
			}
			if mirrorClient != nil {
				stats := mirrorClient.Stats()
				logger.Info("mirror client stats",
					"requests", stats.TotalRequests,
					"errors", stats.TotalErrors,
					"avg_response_ms", stats.ResponseTimeStats.Average.Milliseconds(),
				)
			}
		}
	}
}
