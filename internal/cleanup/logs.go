// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"os"
	"path/filepath"
	"time"
)

// sweepThreadLogs implements spec.md §4.8 step 1: delete thread
// transcript logs under ThreadLogDir whose modification time is
// older than LogRetention. Returns the count removed.
func (s *Scheduler) sweepThreadLogs(now time.Time) (int, error) {
	dir, err := expandHome(s.ThreadLogDir)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			s.Log.Warn("failed to stat thread log entry", "name", e.Name(), "error", err)
			continue
		}
		if now.Sub(info.ModTime()) < s.LogRetention {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.Log.Warn("failed to remove expired thread log", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// expandHome resolves a leading "~" to the user's home directory, the
// same convention the worktree and store packages' default paths use.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}
