// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"strings"

	"github.com/jontk/movableq/internal/coordinator"
	"github.com/jontk/movableq/pkg/clientversion"
	"github.com/jontk/movableq/pkg/config"
	"github.com/jontk/movableq/pkg/errors"
)

// resolveRequest validates a worker's reported version against the
// configured minimum for its kind and resolves the set of job kinds it
// may request: every requested kind must be in the configured allow-list,
// and a single disallowed kind rejects the whole request. Gating on
// version and type lives here rather than in the coordinator, since it
// is a property of the HTTP-facing client contract, not of dispatch.
func resolveRequest(cfg *config.Config, versionRaw, typesCSV string) (coordinator.WorkerKind, []coordinator.Kind, error) {
	v, err := clientversion.Parse(versionRaw)
	if err != nil {
		return "", nil, errors.ClientRejected(fmt.Sprintf("malformed version %q", versionRaw))
	}

	minVer, ok := cfg.MinVersions[v.Kind]
	if !ok {
		return "", nil, errors.ClientRejected(fmt.Sprintf("unknown worker kind %q", v.Kind))
	}

	ok, err = clientversion.Satisfies(versionRaw, minVer.MinVersion)
	if err != nil || !ok {
		return "", nil, errors.ClientRejected(fmt.Sprintf("version %q is below the required minimum %q", versionRaw, minVer.MinVersion))
	}

	allowed := make(map[coordinator.Kind]bool, len(minVer.AllowedKinds))
	for _, k := range minVer.AllowedKinds {
		allowed[coordinator.Kind(k)] = true
	}

	if strings.TrimSpace(typesCSV) == "" {
		kinds := make([]coordinator.Kind, 0, len(allowed))
		for k := range allowed {
			kinds = append(kinds, k)
		}
		return coordinator.WorkerKind(v.Kind), kinds, nil
	}

	var kinds []coordinator.Kind
	for _, raw := range strings.Split(typesCSV, ",") {
		k := coordinator.Kind(strings.TrimSpace(raw))
		if k == "" {
			continue
		}
		if !allowed[k] {
			return "", nil, errors.ClientRejected(fmt.Sprintf("worker kind %q may not request job type %q", v.Kind, k))
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return "", nil, errors.ClientRejected("no requested job types are valid")
	}
	return coordinator.WorkerKind(v.Kind), kinds, nil
}
