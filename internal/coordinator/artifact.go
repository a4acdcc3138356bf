// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jontk/movableq/pkg/logging"
)

const (
	lfcsFileLength       = 5
	msedKeyYLength       = 16
	msedEnvelopeLength   = 320
	msedKeyYOffset       = 0x110
	msedEnvelopeTailZero = msedEnvelopeLength - msedKeyYOffset - msedKeyYLength

	mirrorSearchTimeout = 5 * time.Second
)

// mirrorLookup is the subset of internal/mirror.Client the artifact store
// depends on, kept as an interface so tests can stub it.
type mirrorLookup interface {
	FetchMsed(ctx context.Context, key string) ([]byte, error)
}

// ArtifactStore is the durable, content-addressed mapping from job key to
// result bytes, sharded two levels deep under one root per job kind.
type ArtifactStore struct {
	roots  map[Kind]string
	mirror mirrorLookup
	logger logging.Logger
	saved  int64
}

// NewArtifactStore builds a store rooted at fcLfcsRoot/miiLfcsRoot/msedRoot.
// mirror may be nil to disable the upstream fallback entirely.
func NewArtifactStore(fcLfcsRoot, miiLfcsRoot, msedRoot string, mirror mirrorLookup, logger logging.Logger) *ArtifactStore {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ArtifactStore{
		roots: map[Kind]string{
			KindFcLfcs:  fcLfcsRoot,
			KindMiiLfcs: miiLfcsRoot,
			KindMsed:    msedRoot,
		},
		mirror: mirror,
		logger: logger,
	}
}

func (s *ArtifactStore) pathFor(kind Kind, key string) (string, error) {
	root, ok := s.roots[kind]
	if !ok || root == "" {
		return "", errors.New("coordinator: no artifact root configured for kind " + string(kind))
	}
	if len(key) < 4 {
		return "", errors.New("coordinator: artifact key too short to shard: " + key)
	}
	return filepath.Join(root, key[0:2], key[2:4], key), nil
}

// Exists reports whether an artifact is stored for key under kind.
func (s *ArtifactStore) Exists(kind Kind, key string) bool {
	path, err := s.pathFor(kind, key)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save persists raw under kind/key, creating parent directories as
// needed. Concurrent saves of equal content are idempotent; saves of
// differing content for the same key are last-writer-wins, which is
// acceptable because validation always precedes the call.
func (s *ArtifactStore) Save(kind Kind, key string, raw []byte) error {
	path, err := s.pathFor(kind, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	atomic.AddInt64(&s.saved, 1)
	return nil
}

// Count reports how many Save calls have succeeded in this process's
// lifetime. It is a coarse, in-memory approximation of "total artifacts
// mined" for network-stats reporting, not a filesystem walk.
func (s *ArtifactStore) Count() int64 {
	return atomic.LoadInt64(&s.saved)
}

// Read loads the artifact for kind/key and applies kind-specific
// post-processing. found is false if the artifact is absent or
// malformed for its kind.
func (s *ArtifactStore) Read(kind Kind, key string) (raw []byte, found bool, err error) {
	path, perr := s.pathFor(kind, key)
	if perr != nil {
		return nil, false, nil
	}
	raw, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	switch kind {
	case KindFcLfcs, KindMiiLfcs:
		if len(raw) < lfcsFileLength {
			return nil, false, nil
		}
		return raw[:lfcsFileLength], true, nil
	case KindMsed:
		switch len(raw) {
		case msedEnvelopeLength:
			return raw, true, nil
		case msedKeyYLength:
			envelope := make([]byte, 0, msedEnvelopeLength)
			envelope = append(envelope, make([]byte, msedKeyYOffset)...)
			envelope = append(envelope, raw...)
			envelope = append(envelope, make([]byte, msedEnvelopeTailZero)...)
			return envelope, true, nil
		default:
			return nil, false, nil
		}
	default:
		return raw, true, nil
	}
}

// ReadMsedFromMirror is a best-effort fallback consulted when the local
// store has no msed artifact for id0: it asks the configured upstream
// mirror and, on success, persists the result locally before returning
// it. All failures (disabled mirror, timeout, transport error, 404) are
// swallowed and reported as "not found" rather than propagated, per the
// mirror lookup's never-raise contract.
func (s *ArtifactStore) ReadMsedFromMirror(id0 string) ([]byte, bool) {
	if s.mirror == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), mirrorSearchTimeout)
	defer cancel()

	body, err := s.mirror.FetchMsed(ctx, id0)
	if err != nil {
		s.logger.Debug("mirror lookup miss", "id0", id0, "error", err.Error())
		return nil, false
	}

	keyY, ok := normalizeMsedBytes(body)
	if !ok {
		return nil, false
	}

	if err := s.Save(KindMsed, id0, keyY); err != nil {
		s.logger.Info("failed to persist mirror artifact locally", "id0", id0, "error", err.Error())
	}

	raw, found, err := s.Read(KindMsed, id0)
	if err != nil || !found {
		return nil, false
	}
	return raw, true
}

// normalizeMsedBytes accepts either the raw key-y or full envelope shape
// from a mirror response and returns the canonical form to persist.
func normalizeMsedBytes(raw []byte) ([]byte, bool) {
	switch len(raw) {
	case msedKeyYLength, msedEnvelopeLength:
		return raw, true
	default:
		return nil, false
	}
}

