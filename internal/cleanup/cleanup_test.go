// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/session"
	"github.com/hollow-creek/chatbridge/internal/store"
	"github.com/hollow-creek/chatbridge/internal/worktree"
)

// fakeGit is a scriptable worktree.GitExecutor; it performs real
// filesystem operations for Create/Remove so Refresh and the removal
// fallback path are exercised without an actual git binary.
type fakeGit struct {
	ancestor map[string]bool
}

func newFakeGit() *fakeGit { return &fakeGit{ancestor: map[string]bool{}} }

func (g *fakeGit) WorktreeList(ctx context.Context, dir string) ([]worktree.Info, error) { return nil, nil }
func (g *fakeGit) Status(ctx context.Context, path string) (worktree.Status, error) {
	return worktree.Status{Clean: true}, nil
}
func (g *fakeGit) BranchInfo(ctx context.Context, path string) (worktree.BranchInfo, error) {
	return worktree.BranchInfo{Name: filepath.Base(path)}, nil
}
func (g *fakeGit) BranchExists(ctx context.Context, repoDir, branch string) bool { return true }
func (g *fakeGit) CreateWorktree(ctx context.Context, repoDir, path, branch string, newBranch bool) error {
	return os.MkdirAll(path, 0o755)
}
func (g *fakeGit) RemoveWorktree(ctx context.Context, repoDir, path string, force bool) error {
	return os.RemoveAll(path)
}
func (g *fakeGit) PruneWorktrees(ctx context.Context, repoDir string) error { return nil }
func (g *fakeGit) DefaultBranch(ctx context.Context, repoDir string) string { return "main" }
func (g *fakeGit) IsAncestor(ctx context.Context, repoDir, ancestor, descendant string) bool {
	return g.ancestor[ancestor]
}

func newTestScheduler(t *testing.T) (*Scheduler, worktree.Manager, string) {
	t.Helper()
	root := t.TempDir()
	git := newFakeGit()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	clk := clock.NewFake(time.Now())
	wtMgr := worktree.NewManager(git, nil, clk, log, root)

	stPath := filepath.Join(t.TempDir(), "store.json")
	st := store.New(stPath, "mattermost")

	s := New(session.NewRegistry(), st, wtMgr, eventbus.NewMemoryBus(eventbus.HistoryConfig{}, log), clk, log)
	s.WorktreeMaxAge = time.Hour
	return s, wtMgr, root
}

func TestSweepWorktreesRemovesEntryWithNoSidecar(t *testing.T) {
	s, _, root := newTestScheduler(t)
	orphan := filepath.Join(root, "orphan")
	require.NoError(t, os.MkdirAll(orphan, 0o755))

	removed, err := s.sweepWorktrees(context.Background(), s.Clock.Now())
	require.NoError(t, err)
	assert.Contains(t, removed, orphan)
	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepWorktreesSkipsRecentActiveSidecar(t *testing.T) {
	s, wtMgr, _ := newTestScheduler(t)
	info, err := wtMgr.Create(context.Background(), "/repo", "feature/x", "sess1")
	require.NoError(t, err)

	removed, err := s.sweepWorktrees(context.Background(), s.Clock.Now())
	require.NoError(t, err)
	assert.NotContains(t, removed, info.Path)
	_, ok := wtMgr.GetByPath(info.Path)
	assert.True(t, ok)
}

func TestSweepWorktreesRemovesInactiveAfterMaxAge(t *testing.T) {
	s, wtMgr, _ := newTestScheduler(t)
	info, err := wtMgr.Create(context.Background(), "/repo", "feature/old", "sess1")
	require.NoError(t, err)

	future := s.Clock.Now().Add(2 * time.Hour)
	removed, err := s.sweepWorktrees(context.Background(), future)
	require.NoError(t, err)
	assert.Contains(t, removed, info.Path)
}

func TestSweepWorktreesSkipsPathsClaimedByActiveSession(t *testing.T) {
	s, wtMgr, _ := newTestScheduler(t)
	info, err := wtMgr.Create(context.Background(), "/repo", "feature/live", "sess1")
	require.NoError(t, err)

	sess := &session.Session{ID: "sess1", PlatformID: "mattermost", ThreadID: "t1",
		Worktree: &session.WorktreeBinding{WorktreePath: info.Path}}
	sess.SetLifecycle(session.LifecycleActive)
	s.Sessions.Insert(sess)

	future := s.Clock.Now().Add(2 * time.Hour)
	removed, err := s.sweepWorktrees(context.Background(), future)
	require.NoError(t, err)
	assert.NotContains(t, removed, info.Path)
}

func TestSweepThreadLogsRemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jsonl")
	fresh := filepath.Join(dir, "fresh.jsonl")
	require.NoError(t, os.WriteFile(old, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("{}"), 0o644))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	s, _, _ := newTestScheduler(t)
	s.ThreadLogDir = dir
	s.LogRetention = 24 * time.Hour

	n, err := s.sweepThreadLogs(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestNextWaitFallsBackToIntervalWithoutScheduleExpr(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.Interval = 45 * time.Minute
	assert.Equal(t, 45*time.Minute, s.nextWait())
}

func TestNextWaitFallsBackOnInvalidScheduleExpr(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.Interval = 10 * time.Minute
	s.ScheduleExpr = "not a cron expression"
	assert.Equal(t, 10*time.Minute, s.nextWait())
}

func TestScanPublishesCleanupRanEvent(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	bus := eventbus.NewMemoryBus(eventbus.HistoryConfig{MaxEvents: 10}, nil)
	s.Bus = bus

	s.Scan(context.Background())

	history, err := bus.History(eventbus.Filter{Kinds: []eventbus.Kind{eventbus.KindCleanupRan}})
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestWatchRootTriggersScanOnOutOfBandRemoval(t *testing.T) {
	s, wtMgr, root := newTestScheduler(t)
	info, err := wtMgr.Create(context.Background(), "/repo", "feature/watched", "sess1")
	require.NoError(t, err)

	bus := eventbus.NewMemoryBus(eventbus.HistoryConfig{MaxEvents: 10}, nil)
	s.Bus = bus
	s.WorktreeMaxAge = time.Hour

	w, err := WatchRoot(s, root)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.RemoveAll(info.Path))

	require.Eventually(t, func() bool {
		history, err := bus.History(eventbus.Filter{Kinds: []eventbus.Kind{eventbus.KindCleanupRan}})
		return err == nil && len(history) >= 1
	}, 5*time.Second, 50*time.Millisecond)
}
