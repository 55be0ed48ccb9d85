// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sticky

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
	"github.com/hollow-creek/chatbridge/internal/store"
)

func newTestRenderer(t *testing.T) (*Renderer, *session.Registry, *platform.Fake) {
	t.Helper()
	registry := session.NewRegistry()
	st := store.New(filepath.Join(t.TempDir(), "sessions.json"), "mattermost")
	fake := platform.NewFake(platform.Mattermost{}, platform.MessageLimits{MaxLength: 4000, HardThreshold: 3500})
	clk := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(registry, st, fake, "mattermost", "general", "1.2.3", clk, log)
	return r, registry, fake
}

func TestRefreshCreatesAndPinsStickyPost(t *testing.T) {
	r, _, fake := newTestRenderer(t)

	err := r.Refresh(context.Background())
	require.NoError(t, err)

	postID, err := r.currentPostID()
	require.NoError(t, err)
	require.NotEmpty(t, postID)

	pinned, err := fake.GetPinnedPosts(context.Background(), "general")
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, postID, pinned[0].ID)
	assert.Contains(t, pinned[0].Text, "No active sessions")
}

func TestRefreshUpdatesExistingPostInPlace(t *testing.T) {
	r, registry, fake := newTestRenderer(t)

	require.NoError(t, r.Refresh(context.Background()))
	firstID, err := r.currentPostID()
	require.NoError(t, err)

	sess := &session.Session{ID: "s1", PlatformID: "mattermost", ThreadID: "t1", StarterUsername: "alice", StartedAt: time.Now(), SessionNumber: 1}
	sess.SetLifecycle(session.LifecycleActive)
	registry.Insert(sess)

	require.NoError(t, r.Refresh(context.Background()))
	secondID, err := r.currentPostID()
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID, "same post is updated in place, not recreated")

	pinned, err := fake.GetPinnedPosts(context.Background(), "general")
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Contains(t, pinned[0].Text, "alice")
}

func TestRefreshIsNoopWhenBodyUnchanged(t *testing.T) {
	r, _, fake := newTestRenderer(t)
	require.NoError(t, r.Refresh(context.Background()))
	postID, err := r.currentPostID()
	require.NoError(t, err)

	require.NoError(t, fake.UpdatePost(context.Background(), postID, "mutated out of band"))
	require.NoError(t, r.Refresh(context.Background()))

	history, err := fake.GetThreadHistory(context.Background(), postID, 0, false)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "mutated out of band", history[0].Text, "unchanged body should not re-push an update")
}

func TestRefreshRecreatesPostWhenMissingOutOfBand(t *testing.T) {
	r, registry, fake := newTestRenderer(t)
	require.NoError(t, r.Refresh(context.Background()))
	staleID, err := r.currentPostID()
	require.NoError(t, err)

	require.NoError(t, fake.DeletePost(context.Background(), staleID))

	sess := &session.Session{ID: "s1", PlatformID: "mattermost", ThreadID: "t1", StarterUsername: "bob", StartedAt: time.Now(), SessionNumber: 2}
	registry.Insert(sess)

	require.NoError(t, r.Refresh(context.Background()))
	newID, err := r.currentPostID()
	require.NoError(t, err)
	assert.NotEqual(t, staleID, newID)

	pinned, err := fake.GetPinnedPosts(context.Background(), "general")
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, newID, pinned[0].ID)
}

func TestWatchDebouncesBurstOfEvents(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewMemoryBus(eventbus.HistoryConfig{MaxEvents: 10}, log)
	t.Cleanup(func() { _ = bus.Close() })

	_, err := Watch(bus, r)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), eventbus.Event{Kind: eventbus.KindSessionUpdated}))
	}

	require.Eventually(t, func() bool {
		id, err := r.currentPostID()
		return err == nil && id != ""
	}, 3*time.Second, 20*time.Millisecond)
}
