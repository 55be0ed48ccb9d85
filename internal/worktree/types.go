// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package worktree manages git worktrees created on behalf of chat
// sessions: a per-repo central directory under ~/.<app>/worktrees/, a
// JSON sidecar file per worktree recording session ownership and
// activity, and branch-name validation equivalent to
// `git check-ref-format`.
//
// Grounded on the teacher's internal/worktree package, generalized
// from "worktrees for a local dev dashboard, discovered by listing
// the repo" to spec.md §4.7's "worktrees created and owned by the
// chatbridge process in a single central directory, tracked via
// sidecar metadata".
package worktree

import (
	"context"
	"path/filepath"
	"time"
)

// Info describes one git worktree discovered via `git worktree list`.
type Info struct {
	Path     string
	Commit   string
	Branch   string
	Detached bool
	IsBare   bool
	Dirty    bool
	Ahead    int
	Behind   int
}

// Name returns the directory name of the worktree.
func (w *Info) Name() string {
	return filepath.Base(w.Path)
}

// Status represents the status of a git working directory.
type Status struct {
	Clean     bool
	Modified  []string
	Added     []string
	Deleted   []string
	Renamed   []string
	Untracked []string
}

// HasChanges returns true if there are any changes in the working directory.
func (s *Status) HasChanges() bool {
	if s.Clean {
		return false
	}
	return len(s.Modified) > 0 || len(s.Added) > 0 ||
		len(s.Deleted) > 0 || len(s.Renamed) > 0 ||
		len(s.Untracked) > 0
}

// BranchInfo contains information about the current branch.
type BranchInfo struct {
	Name     string
	Detached bool
	Commit   string
}

// Metadata is the sidecar file chatbridge writes alongside each
// worktree it creates (`.<app>-meta.json`, spec.md §6 persistent
// state layout). Advisory only — loss or corruption never blocks
// session flow (spec.md §7(g)).
type Metadata struct {
	SessionID      string    `json:"sessionId,omitempty"`
	Branch         string    `json:"branch"`
	RepoDir        string    `json:"repoDir"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// GitExecutor is the interface for the git operations worktree needs.
// Behind an interface per Design Notes §9, mirroring the boundary the
// teacher already draws for its own git access.
type GitExecutor interface {
	WorktreeList(ctx context.Context, dir string) ([]Info, error)
	Status(ctx context.Context, path string) (Status, error)
	BranchInfo(ctx context.Context, path string) (BranchInfo, error)
	BranchExists(ctx context.Context, repoDir, branch string) bool
	CreateWorktree(ctx context.Context, repoDir, path, branch string, newBranch bool) error
	RemoveWorktree(ctx context.Context, repoDir, path string, force bool) error
	PruneWorktrees(ctx context.Context, repoDir string) error
	DefaultBranch(ctx context.Context, repoDir string) string
	IsAncestor(ctx context.Context, repoDir, ancestor, descendant string) bool
}

// Manager is the interface chatbridge's session lifecycle depends on.
type Manager interface {
	List() ([]Info, error)
	GetByPath(path string) (Info, bool)
	Create(ctx context.Context, repoDir, branchName string, sessionID string) (Info, error)
	Remove(ctx context.Context, path string, deleteBranch bool) error
	Refresh(ctx context.Context) error
	Root() string
	IsManagedPath(path string) bool
	ReadMetadata(path string) (Metadata, bool)
	WriteMetadata(path string, meta Metadata) error
	UpdateActivity(path string, sessionID string) error
	IsBranchMerged(ctx context.Context, repoDir, branch string) bool
}
