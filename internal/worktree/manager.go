// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"log/slog"

	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
)

// manager is the production Manager implementation: all worktrees it
// creates live under root (~/.<app>/worktrees/), named
// "<encoded-repo>--<sanitized-branch>-<uuid8>" per spec.md §4.7.
type manager struct {
	mu    sync.RWMutex
	git   GitExecutor
	bus   eventbus.Bus
	clock clock.Clock
	log   *slog.Logger

	root      string
	worktrees []Info
}

// NewManager creates a worktree manager rooted at root (typically
// ~/.<app>/worktrees/).
func NewManager(git GitExecutor, bus eventbus.Bus, clk clock.Clock, log *slog.Logger, root string) Manager {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &manager{git: git, bus: bus, clock: clk, log: log, root: root}
}

func (m *manager) Root() string { return m.root }

// IsManagedPath reports whether path lives under the central
// worktrees root, per spec.md §4.7's `isValidWorktreePath`.
func (m *manager) IsManagedPath(path string) bool {
	return isValidWorktreePath(m.root, path)
}

func (m *manager) List() ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Info, len(m.worktrees))
	copy(result, m.worktrees)
	return result, nil
}

func (m *manager) GetByPath(path string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, wt := range m.worktrees {
		if wt.Path == path {
			return wt, true
		}
	}
	return Info{}, false
}

// Refresh reloads the worktree list for every repo rooted within m.root
// by walking its immediate subdirectories and asking git about each.
func (m *manager) Refresh(ctx context.Context) error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			m.mu.Lock()
			m.worktrees = nil
			m.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read worktree root: %w", err)
	}

	var all []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(m.root, e.Name())
		branch, err := m.git.BranchInfo(ctx, path)
		if err != nil {
			continue
		}
		info := Info{Path: path, Branch: branch.Name, Detached: branch.Detached, Commit: branch.Commit}
		status, err := m.git.Status(ctx, path)
		if err == nil {
			info.Dirty = status.HasChanges()
		}
		all = append(all, info)
	}

	m.mu.Lock()
	m.worktrees = all
	m.mu.Unlock()
	return nil
}

// Create validates branchName, allocates a worktree directory name
// encoding the repo and branch plus a short random suffix, and runs
// `git worktree add` using the existing branch if one is present, else
// `-b`. Writes the sidecar metadata and publishes KindWorktreeCreated.
func (m *manager) Create(ctx context.Context, repoDir, branchName, sessionID string) (Info, error) {
	if err := ValidateBranchName(branchName); err != nil {
		return Info{}, err
	}

	repoName := encodeRepoName(repoDir)
	suffix, err := randomSuffix(4)
	if err != nil {
		return Info{}, fmt.Errorf("generate worktree suffix: %w", err)
	}
	dirName := fmt.Sprintf("%s--%s-%s", repoName, sanitizeBranchForPath(branchName), suffix)
	path := filepath.Join(m.root, dirName)

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return Info{}, fmt.Errorf("create worktree root: %w", err)
	}

	newBranch := !m.git.BranchExists(ctx, repoDir, branchName)
	if err := m.git.CreateWorktree(ctx, repoDir, path, branchName, newBranch); err != nil {
		return Info{}, err
	}

	now := m.clock.Now()
	meta := Metadata{SessionID: sessionID, Branch: branchName, RepoDir: repoDir, CreatedAt: now, LastActivityAt: now}
	if err := writeWorktreeMetadata(path, meta); err != nil {
		m.log.Warn("failed to write worktree sidecar", "path", path, "error", err)
	}

	info := Info{Path: path, Branch: branchName}

	m.mu.Lock()
	m.worktrees = append(m.worktrees, info)
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(ctx, eventbus.Event{
			Kind:      eventbus.KindWorktreeCreated,
			SessionID: sessionID,
			Payload:   map[string]any{"path": path, "branch": branchName},
		})
	}

	return info, nil
}

// Remove deletes a worktree: clean remove, then force remove, then
// prune; the sidecar is cleared regardless of outcome (spec.md §4.7).
// Refuses paths outside the managed root.
func (m *manager) Remove(ctx context.Context, path string, deleteBranch bool) error {
	if !m.IsManagedPath(path) {
		return fmt.Errorf("refusing to remove unmanaged path %q", path)
	}

	info, found := m.GetByPath(path)
	if !found {
		return fmt.Errorf("worktree %q not found", path)
	}

	meta, _ := readWorktreeMetadata(path)
	repoDir := meta.RepoDir

	err := m.git.RemoveWorktree(ctx, repoDir, path, false)
	if err != nil {
		m.log.Warn("git worktree remove failed, falling back to directory removal", "path", path, "error", err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			removeWorktreeMetadata(path)
			return fmt.Errorf("remove worktree directory: %w", rmErr)
		}
	}
	_ = m.git.PruneWorktrees(ctx, repoDir)

	if deleteBranch && info.Branch != "" {
		_, _ = RunCommand(ctx, "-C", repoDir, "branch", "-D", info.Branch)
	}

	removeWorktreeMetadata(path)

	m.mu.Lock()
	for i, wt := range m.worktrees {
		if wt.Path == path {
			m.worktrees = append(m.worktrees[:i], m.worktrees[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(ctx, eventbus.Event{
			Kind:      eventbus.KindWorktreeRemoved,
			SessionID: meta.SessionID,
			Payload:   map[string]any{"path": path, "branch": info.Branch, "branchDeleted": deleteBranch},
		})
	}

	return nil
}

func (m *manager) ReadMetadata(path string) (Metadata, bool) {
	return readWorktreeMetadata(path)
}

func (m *manager) WriteMetadata(path string, meta Metadata) error {
	return writeWorktreeMetadata(path, meta)
}

// UpdateActivity is fire-and-forget per spec.md §5: callers should not
// treat its error as blocking.
func (m *manager) UpdateActivity(path, sessionID string) error {
	return updateWorktreeActivity(path, sessionID, m.clock.Now())
}

// IsBranchMerged reports whether branch's tip is an ancestor of
// repoDir's default branch (origin/HEAD, falling back to main/master).
func (m *manager) IsBranchMerged(ctx context.Context, repoDir, branch string) bool {
	if branch == "" {
		return false
	}
	def := m.git.DefaultBranch(ctx, repoDir)
	if def == "" || def == branch {
		return false
	}
	return m.git.IsAncestor(ctx, repoDir, branch, def)
}

func encodeRepoName(repoDir string) string {
	name := filepath.Base(strings.TrimSuffix(repoDir, string(filepath.Separator)))
	if name == "" || name == "." {
		name = "repo"
	}
	return name
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
