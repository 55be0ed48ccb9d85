// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// sidecarName is the per-worktree metadata file, spec.md §6's
// ".<app>-meta.json".
const sidecarName = ".chatbridge-meta.json"

func sidecarPath(worktreePath string) string {
	return filepath.Join(worktreePath, sidecarName)
}

// writeWorktreeMetadata writes meta to the worktree's sidecar file.
// Failures here are advisory (spec.md §7(g)) — callers log and
// continue rather than failing the surrounding operation.
func writeWorktreeMetadata(worktreePath string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal worktree metadata: %w", err)
	}
	tmp := sidecarPath(worktreePath) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write worktree metadata: %w", err)
	}
	return os.Rename(tmp, sidecarPath(worktreePath))
}

// readWorktreeMetadata reads the sidecar file, if present.
func readWorktreeMetadata(worktreePath string) (Metadata, bool) {
	data, err := os.ReadFile(sidecarPath(worktreePath))
	if err != nil {
		return Metadata{}, false
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, false
	}
	return meta, true
}

// updateWorktreeActivity bumps lastActivityAt (and optionally
// sessionId) on an existing sidecar. Fire-and-forget per spec.md §5:
// callers should not block session flow on its error.
func updateWorktreeActivity(worktreePath, sessionID string, now time.Time) error {
	meta, ok := readWorktreeMetadata(worktreePath)
	if !ok {
		meta = Metadata{CreatedAt: now}
	}
	meta.LastActivityAt = now
	if sessionID != "" {
		meta.SessionID = sessionID
	}
	return writeWorktreeMetadata(worktreePath, meta)
}

func removeWorktreeMetadata(worktreePath string) {
	_ = os.Remove(sidecarPath(worktreePath))
}
