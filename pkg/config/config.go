// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package config loads the coordinator's environment-driven configuration.
package config

import (
	"os"
	"strconv"
	"time"
)

// MinVersion pairs a worker kind with the minimum client version string
// it must present and the job kinds it is allowed to request.
type MinVersion struct {
	MinVersion     string
	AllowedKinds   []string
}

// Config holds all coordinator configuration.
type Config struct {
	// Artifact store roots, one per job kind.
	FcLfcsPath string
	SidLfcsPath string
	MsedPath    string

	// Mirror lookup.
	MirrorBase     string
	MirrorEndpoint string
	MirrorEnabled  bool

	// HTTP server bind address.
	HostAddr string
	HostPort string

	// Admin basic-auth credentials for /api/admin/*.
	AdminUser string
	AdminPass string

	// Policy knobs.
	JobTimeout          time.Duration
	CanceledJobLifetime time.Duration
	WorkerTimeout       time.Duration

	// ReleaseSubJobOnFail controls whether a sub-job `fail` behaves like
	// `release` (reissuable, the default per §9's documented resolution)
	// or genuinely fails the parent split job. See DESIGN.md.
	ReleaseSubJobOnFail bool

	// MinVersions maps worker kind ("miiner", "friendbot") to its
	// minimum accepted client version and allowed job kinds.
	MinVersions map[string]MinVersion
}

// NewDefault returns baseline configuration values before Load overlays
// the environment.
func NewDefault() *Config {
	return &Config{
		FcLfcsPath:          "./data/fc-lfcs",
		SidLfcsPath:         "./data/mii-lfcs",
		MsedPath:            "./data/msed",
		MirrorBase:          "",
		MirrorEndpoint:      "",
		MirrorEnabled:       false,
		HostAddr:            "0.0.0.0",
		HostPort:            "8080",
		AdminUser:           "",
		AdminPass:           "",
		JobTimeout:          5 * time.Minute,
		CanceledJobLifetime: 5 * time.Minute,
		WorkerTimeout:       10 * time.Minute,
		ReleaseSubJobOnFail: true,
		MinVersions: map[string]MinVersion{
			"miiner":    {MinVersion: "miiner-2.1.1-alpha", AllowedKinds: []string{"mii-lfcs"}},
			"friendbot": {MinVersion: "friendbot-1.0.0", AllowedKinds: []string{"fc-lfcs", "msed"}},
		},
	}
}

// Load overlays environment variables onto the config in place.
func (c *Config) Load() {
	if v := os.Getenv("FC_LFCSES_PATH"); v != "" {
		c.FcLfcsPath = v
	}
	if v := os.Getenv("SID_LFCSES_PATH"); v != "" {
		c.SidLfcsPath = v
	}
	if v := os.Getenv("MSEDS_PATH"); v != "" {
		c.MsedPath = v
	}
	if v := os.Getenv("BFM_SITE_BASE"); v != "" {
		c.MirrorBase = v
		c.MirrorEnabled = true
	}
	if v := os.Getenv("BFM_SITE_ENDPOINT"); v != "" {
		c.MirrorEndpoint = v
	}
	if v := os.Getenv("HOST_ADDR"); v != "" {
		c.HostAddr = v
	}
	if v := os.Getenv("HOST_PORT"); v != "" {
		c.HostPort = v
	}
	if v := os.Getenv("ADMIN_USER"); v != "" {
		c.AdminUser = v
	}
	if v := os.Getenv("ADMIN_PASS"); v != "" {
		c.AdminPass = v
	}
	if v := os.Getenv("JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.JobTimeout = d
		}
	}
	if v := os.Getenv("CANCELED_JOB_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CanceledJobLifetime = d
		}
	}
	if v := os.Getenv("WORKER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.WorkerTimeout = d
		}
	}
	if v := os.Getenv("RELEASE_SUBJOB_ON_FAIL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ReleaseSubJobOnFail = b
		}
	}
}

// Validate checks the configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.FcLfcsPath == "" || c.SidLfcsPath == "" || c.MsedPath == "" {
		return ErrMissingArtifactRoot
	}
	if c.HostPort == "" {
		return ErrMissingHostPort
	}
	if c.JobTimeout <= 0 || c.CanceledJobLifetime <= 0 || c.WorkerTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
