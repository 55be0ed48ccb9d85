// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hollow-creek/chatbridge/internal/aicli"
	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/executor"
	"github.com/hollow-creek/chatbridge/internal/message"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/store"
)

// HeaderPoster is the subset of platform.Platform StartSession needs
// to announce a new session.
type HeaderPoster interface {
	CreatePost(ctx context.Context, channel, text, threadRoot string) (platform.Post, error)
}

// StartOptions carries everything the caller has already resolved
// before a session can be spawned: worktree selection, prior-thread
// context injection, and allowed-user checks are each a prior step in
// spec.md §4.11 owned by the caller (the worktree prompt and context
// prompt handlers in internal/interactive), not by Controller.
type StartOptions struct {
	PlatformID       string
	ThreadID         string
	Channel          string
	StarterUsername  string
	WorkDir          string
	AllowedUsers     []string
	InteractivePerms bool
	SessionNumber    int
	Worktree         *WorktreeBinding
	HeaderText       string // pre-rendered branding+version header
}

// Controller drives session creation, teardown, and the idle monitor,
// per spec.md §4.11. It holds the shared infrastructure every session
// needs; per-session state lives on the *Session values it creates.
//
// Grounded on the teacher's internal/claude.Manager (process lifecycle
// + registry + persistence orchestration in one type), generalized
// from a single long-running dashboard session per worktree to
// spec.md's per-thread session with an idle monitor and resumable
// kill.
type Controller struct {
	Registry *Registry
	Store    *store.Store
	Pending  *message.Registry
	Bus      eventbus.Bus
	Clock    clock.Clock
	Spawner  aicli.Spawner
	Header   HeaderPoster
	Log      *slog.Logger

	IdleCheckInterval time.Duration
	IdleTimeout       time.Duration
	IdleWarning       time.Duration

	stop chan struct{}
}

// NewController builds a Controller. Call Run to start its idle
// monitor loop.
func NewController(registry *Registry, st *store.Store, pending *message.Registry, bus eventbus.Bus, clk clock.Clock, spawner aicli.Spawner, header HeaderPoster, log *slog.Logger) *Controller {
	return &Controller{
		Registry:          registry,
		Store:             st,
		Pending:           pending,
		Bus:               bus,
		Clock:             clk,
		Spawner:           spawner,
		Header:            header,
		Log:               log,
		IdleCheckInterval: 60 * time.Second,
		IdleTimeout:       60 * time.Minute,
		IdleWarning:       5 * time.Minute,
		stop:              make(chan struct{}),
	}
}

// StartSession spawns the AI child, posts the session header, and
// registers+persists the new session.
func (c *Controller) StartSession(ctx context.Context, opts StartOptions) (*Session, error) {
	now := c.Clock.Now()
	aiUUID := uuid.NewString()

	proc := aicli.New(c.Spawner, aicli.SpawnConfig{
		SessionUUID:     aiUUID,
		WorkDir:         opts.WorkDir,
		SkipPermissions: !opts.InteractivePerms,
	}, c.Log)
	if err := proc.Start(ctx); err != nil {
		return nil, fmt.Errorf("spawn AI CLI: %w", err)
	}

	post, err := c.Header.CreatePost(ctx, opts.Channel, opts.HeaderText, "")
	if err != nil {
		_ = proc.Kill(ctx)
		return nil, fmt.Errorf("post session header: %w", err)
	}

	sess := &Session{
		ID:                  uuid.NewString(),
		PlatformID:          opts.PlatformID,
		ThreadID:            opts.ThreadID,
		Channel:             opts.Channel,
		StarterUsername:     opts.StarterUsername,
		StartedAt:           now,
		lastActivityAt:      now,
		SessionNumber:       opts.SessionNumber,
		WorkDir:             opts.WorkDir,
		AllowedUsers:        opts.AllowedUsers,
		InteractivePerms:    opts.InteractivePerms,
		SessionHeaderPostID: post.ID,
		lifecycle:           LifecycleActive,
		AISessionUUID:       aiUUID,
		Worktree:            opts.Worktree,
		Process:             proc,
	}

	c.Registry.Insert(sess)
	c.Registry.BindPost(post.ID, sess)

	if err := c.persist(sess); err != nil {
		c.Log.Warn("failed to persist newly started session", "sessionId", sess.ID, "error", err)
	}

	if err := c.Bus.Publish(ctx, eventbus.Event{
		Kind:      eventbus.KindSessionCreated,
		Timestamp: now,
		SessionID: sess.ID,
		Payload:   map[string]any{"platformId": opts.PlatformID, "threadId": opts.ThreadID},
	}); err != nil {
		c.Log.Warn("failed to publish session.created", "error", err)
	}

	return sess, nil
}

// KillSession tears sess down: clears timers/pending state, emits a
// lifecycle event, SIGTERMs the child, removes it from the registry,
// and either soft-deletes its store row (unpersist=true) or leaves it
// for resume (unpersist=false).
func (c *Controller) KillSession(ctx context.Context, sess *Session, unpersist bool) error {
	c.Pending.ClearSession(sess.ID)
	sess.SetLifecycle(LifecycleEnded)

	if err := c.Bus.Publish(ctx, eventbus.Event{
		Kind:      eventbus.KindSessionLifecycle,
		Timestamp: c.Clock.Now(),
		SessionID: sess.ID,
		Payload:   map[string]any{"action": "killed", "unpersist": unpersist},
	}); err != nil {
		c.Log.Warn("failed to publish session.lifecycle", "error", err)
	}

	if sess.Process != nil {
		if err := sess.Process.Kill(ctx); err != nil {
			c.Log.Warn("failed to kill AI CLI child", "sessionId", sess.ID, "error", err)
		}
	}

	c.Registry.Remove(sess)

	if unpersist {
		if err := c.Store.SoftDelete(sess.Key(), c.Clock.Now()); err != nil {
			return fmt.Errorf("soft delete session: %w", err)
		}
		return nil
	}
	sess.SetLifecycle(LifecyclePaused)
	return c.persist(sess)
}

// persist writes sess's current state to the store as a Snapshot.
func (c *Controller) persist(sess *Session) error {
	snap := store.Snapshot{
		SessionID:           sess.ID,
		PlatformID:          sess.PlatformID,
		ThreadID:            sess.ThreadID,
		AISessionUUID:       sess.AISessionUUID,
		StarterUsername:     sess.StarterUsername,
		StartedAt:           sess.StartedAt,
		LastActivityAt:      sess.LastActivityAt(),
		SessionNumber:       sess.SessionNumber,
		WorkDir:             sess.WorkDir,
		AllowedUsers:        sess.AllowedUsers,
		InteractivePerms:    sess.InteractivePerms,
		SessionHeaderPostID: sess.SessionHeaderPostID,
		SessionStartPostID:  sess.SessionStartPostID,
		LifecyclePostID:     sess.LifecyclePostID,
		Lifecycle:           string(sess.GetLifecycle()),
		ResumeFailCount:     sess.resumeFailCount,
		MessageCount:        sess.MessageCount(),
		TimeoutWarningPosted: sess.TimeoutWarningPosted(),
		LastError:           sess.LastError(),
		PlanApproved:        sess.PlanApproved(),
	}
	if sess.Worktree != nil {
		snap.Worktree = &store.WorktreeSnapshot{
			RepoRoot:        sess.Worktree.RepoRoot,
			WorktreePath:    sess.Worktree.WorktreePath,
			Branch:          sess.Worktree.Branch,
			IsWorktreeOwner: sess.Worktree.IsWorktreeOwner,
		}
	}
	return c.Store.Save(sess.Key(), snap)
}

// Persist exposes persist to callers outside the package (e.g. after
// a dispatcher-driven state change like plan approval).
func (c *Controller) Persist(sess *Session) error { return c.persist(sess) }

// Run starts the idle monitor loop; it returns when Stop is called.
func (c *Controller) Run(ctx context.Context, onWarn func(ctx context.Context, sess *Session), onTimeout func(ctx context.Context, sess *Session)) {
	ticker := c.Clock.NewTicker(c.IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.sweepIdle(ctx, onWarn, onTimeout)
		}
	}
}

// Stop ends the idle monitor loop started by Run.
func (c *Controller) Stop() { close(c.stop) }

func (c *Controller) sweepIdle(ctx context.Context, onWarn func(ctx context.Context, sess *Session), onTimeout func(ctx context.Context, sess *Session)) {
	now := c.Clock.Now()
	for _, sess := range c.Registry.All() {
		idle := now.Sub(sess.LastActivityAt())
		switch {
		case idle >= c.IdleTimeout:
			if onTimeout != nil {
				onTimeout(ctx, sess)
			}
		case idle >= c.IdleTimeout-c.IdleWarning && !sess.TimeoutWarningPosted():
			sess.MarkTimeoutWarningPosted()
			if onWarn != nil {
				onWarn(ctx, sess)
			}
		}
	}
}

// Controller builds no executor.Dispatcher: it needs the session's
// channel/thread and the platform poster, so callers wire
// Session.Dispatcher after StartSession returns, once they have the
// platform handle. Controller doesn't call internal/executor's
// platform-specific constructors to keep this file's dependency
// surface narrow.
var _ = executor.Dispatcher{}
