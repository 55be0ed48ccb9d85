// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
)

func registryServer(t *testing.T, version string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(registryResponse{Version: version})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckerDetectsNewerVersion(t *testing.T) {
	srv := registryServer(t, "2.0.0")
	c := NewChecker(srv.URL, "1.0.0", time.Minute)

	result, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, result.UpdateNeeded)
	assert.Equal(t, "2.0.0", result.LatestVersion)
}

func TestCheckerNoUpdateWhenCurrent(t *testing.T) {
	srv := registryServer(t, "1.0.0")
	c := NewChecker(srv.URL, "1.0.0", time.Minute)

	result, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, result.UpdateNeeded)
}

func TestCheckerServesCachedResultOnSecondCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode(registryResponse{Version: "2.0.0"})
	}))
	t.Cleanup(srv.Close)
	c := NewChecker(srv.URL, "1.0.0", time.Minute)

	_, err := c.Check(context.Background())
	require.NoError(t, err)
	_, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestInWindowWrapsAcrossMidnight(t *testing.T) {
	assert.True(t, InWindow(23, 22, 5))
	assert.False(t, InWindow(6, 22, 5))
	assert.True(t, InWindow(2, 22, 5))
	assert.False(t, InWindow(12, 22, 5))
}

func TestStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-state.json")
	st := NewStateStore(path)

	now := time.Now().Truncate(time.Second)
	err := st.Save(State{PreviousVersion: "1.0.0", TargetVersion: "2.0.0", StartedAt: &now, JustUpdated: true})
	require.NoError(t, err)

	loaded, err := st.Load()
	require.NoError(t, err)
	assert.True(t, loaded.JustUpdated)
	assert.Equal(t, "2.0.0", loaded.TargetVersion)
}

func TestClearJustUpdatedReturnsPreClearStateAndPersistsCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-state.json")
	st := NewStateStore(path)
	require.NoError(t, st.Save(State{JustUpdated: true, PreviousVersion: "1.0.0", TargetVersion: "2.0.0"}))

	prev, err := st.ClearJustUpdated()
	require.NoError(t, err)
	assert.True(t, prev.JustUpdated)

	after, err := st.Load()
	require.NoError(t, err)
	assert.False(t, after.JustUpdated)
}

func TestAnnouncePostUpdatePostsRollbackInstructions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-state.json")
	st := NewStateStore(path)
	require.NoError(t, st.Save(State{JustUpdated: true, PreviousVersion: "1.0.0", TargetVersion: "2.0.0"}))

	fake := platform.NewFake(platform.Mattermost{}, platform.MessageLimits{MaxLength: 4000, HardThreshold: 3500})
	err := AnnouncePostUpdate(context.Background(), st, fake, "general")
	require.NoError(t, err)

	after, err := st.Load()
	require.NoError(t, err)
	assert.False(t, after.JustUpdated)
}

func TestCoordinatorImmediateModeTriggersOnUpdateAvailable(t *testing.T) {
	srv := registryServer(t, "2.0.0")
	checker := NewChecker(srv.URL, "1.0.0", time.Minute)
	statePath := filepath.Join(t.TempDir(), "update-state.json")
	st := NewStateStore(statePath)
	bus := eventbus.NewMemoryBus(eventbus.HistoryConfig{MaxEvents: 10}, nil)
	clk := clock.NewFake(time.Now())

	coord := New(checker, st, session.NewRegistry(), nil, "", bus, clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	coord.Mode = ModeImmediate
	coord.InstallCommand = ""

	var exitCode int
	exited := make(chan struct{})
	coord.Exit = func(code int) { exitCode = code; close(exited) }

	coord.checkAndHandle(context.Background())

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not trigger restart")
	}
	assert.Equal(t, DefaultRestartExitCode, exitCode)

	saved, err := st.Load()
	require.NoError(t, err)
	assert.True(t, saved.JustUpdated)
	assert.Equal(t, "2.0.0", saved.TargetVersion)
}

func TestSessionsIdleForReflectsRegistryActivity(t *testing.T) {
	registry := session.NewRegistry()
	clk := clock.NewFake(time.Now())
	coord := New(nil, nil, registry, nil, "", nil, clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	coord.IdleTimeout = time.Minute

	assert.True(t, coord.sessionsIdleFor(), "no active sessions means idle")

	sess := &session.Session{ID: "s1", PlatformID: "mattermost", ThreadID: "t1"}
	sess.TouchActivity(clk.Now())
	registry.Insert(sess)

	assert.False(t, coord.sessionsIdleFor(), "recent activity means not idle yet")

	clk.Advance(2 * time.Minute)
	assert.True(t, coord.sessionsIdleFor(), "activity past IdleTimeout means idle")
}

func TestCoordinatorAskModePostsPromptAndRestartsOnThumbsUp(t *testing.T) {
	srv := registryServer(t, "2.0.0")
	checker := NewChecker(srv.URL, "1.0.0", time.Minute)
	statePath := filepath.Join(t.TempDir(), "update-state.json")
	st := NewStateStore(statePath)
	clk := clock.NewFake(time.Now())
	fake := platform.NewFake(platform.Mattermost{}, platform.MessageLimits{MaxLength: 4000, HardThreshold: 3500})

	coord := New(checker, st, session.NewRegistry(), fake, "general", nil, clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	coord.Mode = ModeAsk
	coord.AskTimeout = time.Hour

	var exitCode int
	exited := make(chan struct{})
	coord.Exit = func(code int) { exitCode = code; close(exited) }

	result, err := checker.Check(context.Background())
	require.NoError(t, err)

	go coord.handleUpdateAvailable(context.Background(), result)

	require.Eventually(t, func() bool {
		coord.mu.Lock()
		defer coord.mu.Unlock()
		return coord.askPostID != ""
	}, time.Second, 5*time.Millisecond)

	coord.mu.Lock()
	postID := coord.askPostID
	coord.mu.Unlock()

	consumed, err := coord.ResolveAskReaction(context.Background(), postID, "+1")
	require.NoError(t, err)
	assert.True(t, consumed)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("+1 reaction should have triggered restart")
	}
	assert.Equal(t, DefaultRestartExitCode, exitCode)
}
