// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package message is the shared plumbing behind every interactive
// prompt chatbridge posts: a single per-session "what am I waiting
// on" registry plus a clock-driven timeout for it, so the six handler
// kinds in spec.md §4.6 (permission approval, multi-choice question,
// plan approval, context prompt, worktree prompt, message approval)
// don't each reimplement their own bookkeeping.
//
// Grounded on the teacher's internal/service.ServiceManager (a
// mutex-guarded map[name]*handle central registry with a per-entry
// timer field), generalized from "named service" to "session's one
// pending prompt" and from os/exec process timers to clock.Clock so
// tests can advance time deterministically.
package message

import (
	"context"
	"sync"
	"time"

	"github.com/hollow-creek/chatbridge/internal/clock"
)

// Kind discriminates which of the six interactive handlers owns a
// pending entry, per spec.md §4.6.
type Kind string

const (
	KindApproval        Kind = "approval"
	KindQuestionSet      Kind = "question_set"
	KindPlanApproval    Kind = "plan_approval"
	KindContextPrompt   Kind = "context_prompt"
	KindWorktreePrompt  Kind = "worktree_prompt"
	KindMessageApproval Kind = "message_approval"
	KindBugReport       Kind = "bug_report"
)

// Pending is one outstanding prompt a session is waiting on. Payload
// is the handler-specific state (e.g. interactive's *questionSetPayload);
// callers type-assert it back using the Kind tag.
type Pending struct {
	Kind    Kind
	PostID  string
	Payload any
}

// TimeoutFunc is invoked when a pending entry's deadline elapses
// without resolution. It receives the session ID and the timed-out
// entry so the caller can render a default resolution (e.g. "deny").
type TimeoutFunc func(ctx context.Context, sessionID string, pending Pending)

type entry struct {
	pending Pending
	timer   clock.Timer
}

// Registry tracks at most one Pending per session per Kind (spec.md
// §4.6: a handler registers its post with the router, then resolves
// and clears). It is safe for concurrent use across a session's
// dispatcher goroutine and the reaction router.
type Registry struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries map[string]map[Kind]*entry // sessionID -> kind -> entry
}

// NewRegistry builds an empty Registry driven by clk.
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{clk: clk, entries: make(map[string]map[Kind]*entry)}
}

// Set registers a pending entry for sessionID, replacing any existing
// entry of the same Kind. If timeout > 0, onTimeout fires once after
// timeout elapses unless Clear is called first.
func (r *Registry) Set(ctx context.Context, sessionID string, pending Pending, timeout time.Duration, onTimeout TimeoutFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKind, ok := r.entries[sessionID]
	if !ok {
		byKind = make(map[Kind]*entry)
		r.entries[sessionID] = byKind
	}
	if old, ok := byKind[pending.Kind]; ok && old.timer != nil {
		old.timer.Stop()
	}

	e := &entry{pending: pending}
	if timeout > 0 {
		t := r.clk.NewTimer(timeout)
		e.timer = t
		go func() {
			select {
			case <-t.C():
				r.mu.Lock()
				current, exists := r.entries[sessionID][pending.Kind]
				stillPending := exists && current == e
				if stillPending {
					delete(r.entries[sessionID], pending.Kind)
				}
				r.mu.Unlock()
				if stillPending && onTimeout != nil {
					onTimeout(ctx, sessionID, pending)
				}
			}
		}()
	}
	byKind[pending.Kind] = e
}

// Get returns the pending entry of the given Kind for sessionID, if
// any.
func (r *Registry) Get(sessionID string, kind Kind) (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKind, ok := r.entries[sessionID]
	if !ok {
		return Pending{}, false
	}
	e, ok := byKind[kind]
	if !ok {
		return Pending{}, false
	}
	return e.pending, true
}

// FindByPostID scans sessionID's pending entries for one whose PostID
// matches — the shape the reaction router needs (spec.md §4.10: route
// an inbound reaction by post ID, in handler priority order).
func (r *Registry) FindByPostID(sessionID, postID string) (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKind, ok := r.entries[sessionID]
	if !ok {
		return Pending{}, false
	}
	for _, e := range byKind {
		if e.pending.PostID == postID {
			return e.pending, true
		}
	}
	return Pending{}, false
}

// Clear removes the pending entry of the given Kind for sessionID and
// stops its timeout timer, if any. Call this as soon as a handler
// resolves (spec.md §4.6: "resolve and clear the pending state").
func (r *Registry) Clear(sessionID string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKind, ok := r.entries[sessionID]
	if !ok {
		return
	}
	if e, ok := byKind[kind]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(byKind, kind)
	}
	if len(byKind) == 0 {
		delete(r.entries, sessionID)
	}
}

// ClearSession removes every pending entry for sessionID, stopping
// their timers — used when a session ends or is killed.
func (r *Registry) ClearSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[sessionID] {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	delete(r.entries, sessionID)
}

// All returns every pending entry across every Kind for sessionID, for
// rehydration on restart (spec.md §4.6: "persist their pending state
// to the session store so that a bot restart can rehydrate").
func (r *Registry) All(sessionID string) map[Kind]Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Kind]Pending)
	for k, e := range r.entries[sessionID] {
		out[k] = e.pending
	}
	return out
}
