// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"context"
	"fmt"
	"time"
)

// sweepWorktrees implements spec.md §4.8 step 2: walk the central
// worktrees directory and remove every entry not claimed by a live
// session, per the documented sidecar-age-and-merge rules.
func (s *Scheduler) sweepWorktrees(ctx context.Context, now time.Time) ([]string, error) {
	if err := s.Worktree.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("refresh worktrees: %w", err)
	}
	entries, err := s.Worktree.List()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	active := make(map[string]bool)
	for _, sess := range s.Sessions.All() {
		if sess.Worktree != nil {
			active[sess.Worktree.WorktreePath] = true
		}
	}

	var removed []string
	for _, wt := range entries {
		if active[wt.Path] {
			continue
		}

		reason, remove := s.decideRemoval(ctx, wt.Path, now)
		if !remove {
			continue
		}

		if err := s.Worktree.Remove(ctx, wt.Path, false); err != nil {
			s.Log.Warn("failed to remove stale worktree", "path", wt.Path, "reason", reason, "error", err)
			continue
		}
		s.Log.Info("removed stale worktree", "path", wt.Path, "reason", reason)
		removed = append(removed, wt.Path)
	}
	return removed, nil
}

// decideRemoval applies spec.md §4.8's sidecar rules to one
// unclaimed worktree path.
func (s *Scheduler) decideRemoval(ctx context.Context, path string, now time.Time) (reason string, remove bool) {
	meta, hasSidecar := s.Worktree.ReadMetadata(path)
	if !hasSidecar {
		return "no sidecar", true
	}

	age := now.Sub(meta.LastActivityAt)
	if meta.SessionID != "" && age < s.WorktreeMaxAge {
		return "", false
	}
	if age < s.WorktreeMaxAge {
		return "", false
	}

	if meta.Branch != "" && s.Worktree.IsBranchMerged(ctx, meta.RepoDir, meta.Branch) {
		return "branch merged", true
	}
	return fmt.Sprintf("inactive for %dh", int(age.Hours())), true
}
