// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/aicli"
	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/message"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/store"
)

// fakeChild is a minimal aicli.Child double, mirroring the shape
// internal/aicli's own test double uses.
type fakeChild struct {
	mu     sync.Mutex
	lines  chan []byte
	errs   chan string
	waited chan struct{}
}

func newFakeChild() *fakeChild {
	return &fakeChild{lines: make(chan []byte, 4), errs: make(chan string, 4), waited: make(chan struct{})}
}

func (f *fakeChild) Stdin() io.WriteCloser { return nopWriteCloser{} }
func (f *fakeChild) Lines() <-chan []byte  { return f.lines }
func (f *fakeChild) Stderr() <-chan string { return f.errs }
func (f *fakeChild) Pid() int              { return 9001 }
func (f *fakeChild) Wait() error           { <-f.waited; return nil }
func (f *fakeChild) Signal(sig os.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.waited:
	default:
		close(f.waited)
		close(f.lines)
		close(f.errs)
	}
	return nil
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

type fakeSpawner struct{ child *fakeChild }

func (s *fakeSpawner) Spawn(ctx context.Context, cfg aicli.SpawnConfig) (aicli.Child, error) {
	return s.child, nil
}

type fakeHeaderPoster struct{ posted []string }

func (f *fakeHeaderPoster) CreatePost(ctx context.Context, channel, text, threadRoot string) (platform.Post, error) {
	f.posted = append(f.posted, text)
	return platform.Post{ID: "post-1", ChannelID: channel, Text: text}, nil
}

func newTestController(t *testing.T) (*Controller, *fakeHeaderPoster) {
	t.Helper()
	dir := t.TempDir()
	st := store.New(dir+"/store.json", "mattermost")
	header := &fakeHeaderPoster{}
	bus := eventbus.NewMemoryBus(eventbus.HistoryConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := NewController(NewRegistry(), st, message.NewRegistry(clock.NewFake(time.Now())), bus, clock.NewFake(time.Now()), &fakeSpawner{child: newFakeChild()}, header, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, header
}

func TestControllerStartSessionRegistersAndPersists(t *testing.T) {
	c, header := newTestController(t)
	sess, err := c.StartSession(context.Background(), StartOptions{
		PlatformID:      "mattermost",
		ThreadID:        "thread-1",
		Channel:         "chan-1",
		StarterUsername: "alice",
		WorkDir:         "/tmp/work",
		HeaderText:      "Session #1 started",
	})
	require.NoError(t, err)
	assert.Equal(t, LifecycleActive, sess.GetLifecycle())
	assert.Len(t, header.posted, 1)

	got, ok := c.Registry.Get("mattermost", "thread-1")
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)

	byPost, ok := c.Registry.BySessionPost("post-1")
	require.True(t, ok)
	assert.Equal(t, sess.ID, byPost.ID)

	snap, ok, err := c.Store.FindByThread("mattermost", "thread-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "active", snap.Lifecycle)
}

func TestControllerKillSessionUnpersistSoftDeletes(t *testing.T) {
	c, _ := newTestController(t)
	sess, err := c.StartSession(context.Background(), StartOptions{
		PlatformID: "mattermost",
		ThreadID:   "thread-2",
		Channel:    "chan-1",
		WorkDir:    "/tmp/work",
		HeaderText: "hi",
	})
	require.NoError(t, err)

	require.NoError(t, c.KillSession(context.Background(), sess, true))

	_, ok := c.Registry.Get("mattermost", "thread-2")
	assert.False(t, ok)

	history, err := c.Store.GetHistory("mattermost", nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotNil(t, history[0].CleanedAt)
}

func TestControllerKillSessionPreservesForResume(t *testing.T) {
	c, _ := newTestController(t)
	sess, err := c.StartSession(context.Background(), StartOptions{
		PlatformID: "mattermost",
		ThreadID:   "thread-3",
		Channel:    "chan-1",
		WorkDir:    "/tmp/work",
		HeaderText: "hi",
	})
	require.NoError(t, err)

	require.NoError(t, c.KillSession(context.Background(), sess, false))

	snap, ok, err := c.Store.FindByThread("mattermost", "thread-3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "paused", snap.Lifecycle)
	assert.Nil(t, snap.CleanedAt)
}

func TestControllerSweepIdleWarnsThenTimesOut(t *testing.T) {
	c, _ := newTestController(t)
	fc := clock.NewFake(time.Now())
	c.Clock = fc
	c.IdleTimeout = 10 * time.Minute
	c.IdleWarning = 2 * time.Minute

	sess, err := c.StartSession(context.Background(), StartOptions{
		PlatformID: "mattermost",
		ThreadID:   "thread-4",
		Channel:    "chan-1",
		WorkDir:    "/tmp/work",
		HeaderText: "hi",
	})
	require.NoError(t, err)
	sess.TouchActivity(fc.Now())

	fc.Advance(9 * time.Minute)
	var warned, timedOut bool
	c.sweepIdle(context.Background(), func(ctx context.Context, s *Session) { warned = true }, func(ctx context.Context, s *Session) { timedOut = true })
	assert.True(t, warned)
	assert.False(t, timedOut)

	fc.Advance(2 * time.Minute)
	c.sweepIdle(context.Background(), func(ctx context.Context, s *Session) {}, func(ctx context.Context, s *Session) { timedOut = true })
	assert.True(t, timedOut)
}
