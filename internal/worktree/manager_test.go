// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
)

// fakeGit is a scriptable GitExecutor for manager tests; it performs
// real filesystem operations for CreateWorktree/RemoveWorktree so the
// sidecar and directory-removal paths are exercised without requiring
// an actual git binary.
type fakeGit struct {
	branchExists map[string]bool
	ancestor     map[string]bool
	defaultBr    string
	createErr    error
	removeErr    error
}

func newFakeGit() *fakeGit {
	return &fakeGit{branchExists: map[string]bool{}, ancestor: map[string]bool{}, defaultBr: "main"}
}

func (g *fakeGit) WorktreeList(ctx context.Context, dir string) ([]Info, error) { return nil, nil }
func (g *fakeGit) Status(ctx context.Context, path string) (Status, error)      { return Status{Clean: true}, nil }
func (g *fakeGit) BranchInfo(ctx context.Context, path string) (BranchInfo, error) {
	return BranchInfo{Name: filepath.Base(path)}, nil
}
func (g *fakeGit) BranchExists(ctx context.Context, repoDir, branch string) bool {
	return g.branchExists[branch]
}
func (g *fakeGit) CreateWorktree(ctx context.Context, repoDir, path, branch string, newBranch bool) error {
	if g.createErr != nil {
		return g.createErr
	}
	return os.MkdirAll(path, 0o755)
}
func (g *fakeGit) RemoveWorktree(ctx context.Context, repoDir, path string, force bool) error {
	if g.removeErr != nil {
		return g.removeErr
	}
	return os.RemoveAll(path)
}
func (g *fakeGit) PruneWorktrees(ctx context.Context, repoDir string) error { return nil }
func (g *fakeGit) DefaultBranch(ctx context.Context, repoDir string) string { return g.defaultBr }
func (g *fakeGit) IsAncestor(ctx context.Context, repoDir, ancestor, descendant string) bool {
	return g.ancestor[ancestor]
}

func TestManagerCreateValidatesBranchName(t *testing.T) {
	root := t.TempDir()
	m := NewManager(newFakeGit(), nil, clock.NewFake(time.Now()), nil, root)

	_, err := m.Create(context.Background(), "/repo", "-bad", "sess1")
	assert.Error(t, err)
}

func TestManagerCreateWritesSidecarAndEmitsEvent(t *testing.T) {
	root := t.TempDir()
	git := newFakeGit()
	bus := eventbus.NewMemoryBus(eventbus.HistoryConfig{MaxEvents: 10}, nil)
	m := NewManager(git, bus, clock.NewFake(time.Now()), nil, root)

	info, err := m.Create(context.Background(), "/repo", "feature/foo", "sess1")
	require.NoError(t, err)
	assert.Contains(t, info.Path, root)
	assert.Contains(t, filepath.Base(info.Path), "feature-foo")

	meta, ok := m.ReadMetadata(info.Path)
	require.True(t, ok)
	assert.Equal(t, "sess1", meta.SessionID)
	assert.Equal(t, "feature/foo", meta.Branch)

	history, err := bus.History(eventbus.Filter{Kinds: []eventbus.Kind{eventbus.KindWorktreeCreated}})
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestManagerIsManagedPathRejectsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	m := NewManager(newFakeGit(), nil, clock.NewFake(time.Now()), nil, root)

	assert.True(t, m.IsManagedPath(filepath.Join(root, "some-worktree")))
	assert.False(t, m.IsManagedPath("/etc/passwd"))
	assert.False(t, m.IsManagedPath(root))
}

func TestManagerRemoveRefusesUnmanagedPath(t *testing.T) {
	root := t.TempDir()
	m := NewManager(newFakeGit(), nil, clock.NewFake(time.Now()), nil, root)

	err := m.Remove(context.Background(), "/some/other/path", false)
	assert.Error(t, err)
}

func TestManagerRemoveClearsSidecarOnFallback(t *testing.T) {
	root := t.TempDir()
	git := newFakeGit()
	git.removeErr = assertError{"git worktree remove unavailable"}
	m := NewManager(git, nil, clock.NewFake(time.Now()), nil, root)

	info, err := m.Create(context.Background(), "/repo", "foo", "sess1")
	require.NoError(t, err)

	require.NoError(t, m.Remove(context.Background(), info.Path, false))
	_, ok := m.ReadMetadata(info.Path)
	assert.False(t, ok)
}

func TestManagerIsBranchMergedUsesAncestry(t *testing.T) {
	git := newFakeGit()
	git.ancestor["done-feature"] = true
	m := NewManager(git, nil, clock.NewFake(time.Now()), nil, t.TempDir())

	assert.True(t, m.IsBranchMerged(context.Background(), "/repo", "done-feature"))
	assert.False(t, m.IsBranchMerged(context.Background(), "/repo", "open-feature"))
	assert.False(t, m.IsBranchMerged(context.Background(), "/repo", ""))
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
