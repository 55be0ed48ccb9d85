// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package cleanup implements spec.md §4.8: a periodic background
// scan that prunes thread logs past their retention window, soft-
// deleted store rows past theirs, and worktrees the worktree manager
// no longer ties to a live session. It runs concurrently with normal
// operation; every error is collected and logged, never propagated
// to the main flow (spec.md §7 "Propagation policy").
//
// Grounded on the teacher's internal/logs.Manager.cleanupLoop (a
// ticker-driven background sweep) generalized from "stop idle log
// viewers" to "prune logs, store rows, and worktrees".
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/session"
	"github.com/hollow-creek/chatbridge/internal/store"
	"github.com/hollow-creek/chatbridge/internal/worktree"
)

// Scheduler runs the §4.8 periodic scan.
type Scheduler struct {
	Sessions *session.Registry
	Store    *store.Store
	Worktree worktree.Manager
	Bus      eventbus.Bus
	Clock    clock.Clock
	Log      *slog.Logger

	Interval            time.Duration
	WorktreeMaxAge      time.Duration
	LogRetention        time.Duration
	LogRetentionEnabled bool
	ThreadLogDir        string
	StoreRetention      time.Duration

	// ScheduleExpr, if non-empty and valid, overrides Interval: the
	// scan runs at each cron tick instead of a fixed period.
	ScheduleExpr string

	stop chan struct{}
}

// New builds a Scheduler with the documented defaults (spec.md §4.8:
// 1h interval, 24h worktree max age, 30d log retention).
func New(sessions *session.Registry, st *store.Store, wt worktree.Manager, bus eventbus.Bus, clk clock.Clock, log *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		Sessions:            sessions,
		Store:               st,
		Worktree:            wt,
		Bus:                 bus,
		Clock:               clk,
		Log:                 log,
		Interval:            time.Hour,
		WorktreeMaxAge:      24 * time.Hour,
		LogRetention:        30 * 24 * time.Hour,
		LogRetentionEnabled: true,
		StoreRetention:      14 * 24 * time.Hour,
		stop:                make(chan struct{}),
	}
}

// Run blocks, scanning every tick until ctx is cancelled or Stop is
// called. Intended to be launched with `go scheduler.Run(ctx)`.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := s.nextWait()
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-s.Clock.After(wait):
			s.Scan(ctx)
		}
	}
}

// Stop ends a running Run loop.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// nextWait returns the duration until the next scan: ScheduleExpr's
// next cron tick when a valid expression is configured, else the
// plain fixed Interval.
func (s *Scheduler) nextWait() time.Duration {
	if s.ScheduleExpr == "" {
		return s.Interval
	}
	g := gronx.New()
	if !g.IsValid(s.ScheduleExpr) {
		s.Log.Warn("invalid cleanup schedule_expr, falling back to interval", "expr", s.ScheduleExpr)
		return s.Interval
	}
	now := s.Clock.Now()
	next, err := gronx.NextTickAfter(s.ScheduleExpr, now, false)
	if err != nil {
		s.Log.Warn("failed to compute next cleanup tick, falling back to interval", "expr", s.ScheduleExpr, "error", err)
		return s.Interval
	}
	if d := next.Sub(now); d > 0 {
		return d
	}
	return s.Interval
}

// Scan runs one pass of every configured sweep, logging and
// swallowing every error so one failing sweep never blocks another.
func (s *Scheduler) Scan(ctx context.Context) {
	now := s.Clock.Now()
	var logsDeleted, storeRows int
	var worktreesRemoved []string

	if s.LogRetentionEnabled && s.ThreadLogDir != "" {
		n, err := s.sweepThreadLogs(now)
		if err != nil {
			s.Log.Warn("thread log retention sweep failed", "error", err)
		}
		logsDeleted = n
	}

	if s.Store != nil && s.StoreRetention > 0 {
		n, err := s.Store.CleanHistory(s.StoreRetention, now)
		if err != nil {
			s.Log.Warn("store history retention sweep failed", "error", err)
		}
		storeRows = n
	}

	if s.Worktree != nil {
		removed, err := s.sweepWorktrees(ctx, now)
		if err != nil {
			s.Log.Warn("worktree sweep failed", "error", err)
		}
		worktreesRemoved = removed
	}

	if s.Bus != nil {
		err := s.Bus.Publish(ctx, eventbus.Event{
			Kind: eventbus.KindCleanupRan,
			Payload: map[string]any{
				"logsDeleted":      logsDeleted,
				"storeRowsPruned":  storeRows,
				"worktreesRemoved": worktreesRemoved,
			},
		})
		if err != nil {
			s.Log.Warn("failed to publish cleanup.ran", "error", err)
		}
	}
}
