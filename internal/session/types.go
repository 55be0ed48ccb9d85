// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session is chatbridge's per-thread orchestration core: one
// Session pairs a chat thread with a long-lived AI CLI child process
// and its executors; Registry indexes every live Session by
// (platformID, threadID) and by the posts it owns, for the reaction
// router and inbound-message handler.
//
// Grounded on the teacher's internal/claude package (claude.Session /
// claude.Manager: a mutex-guarded session struct plus a registry
// keyed by session ID with a subscriber-fanout model), generalized
// from "one dashboard-wide set of claude sessions" to spec.md §4.2's
// per-thread session keyed by platform and thread, and from
// claude.Manager's flat map to a dual (thread, post) index.
package session

import (
	"sync"
	"time"

	"github.com/hollow-creek/chatbridge/internal/aicli"
	"github.com/hollow-creek/chatbridge/internal/executor"
)

// Lifecycle is the session's coarse-grained state, persisted verbatim
// in store.Snapshot.Lifecycle (spec.md §3).
type Lifecycle string

const (
	LifecycleActive     Lifecycle = "active"
	LifecycleCancelling Lifecycle = "cancelling"
	LifecycleInterrupted Lifecycle = "interrupted"
	LifecycleTimingOut  Lifecycle = "timing-out"
	LifecyclePaused     Lifecycle = "paused"
	LifecycleEnded      Lifecycle = "ended"
)

// Session is one live (platform thread) ↔ (AI CLI child process)
// pairing. The unexported state fields are guarded by mu and reached
// through the methods below. The exported fields are not guarded by
// mu; internal/app reassigns Process, Worktree and WorkDir directly.
type Session struct {
	mu sync.Mutex

	ID         string // uuid
	PlatformID string
	ThreadID   string
	Channel    string

	StarterUsername  string
	StartedAt        time.Time
	lastActivityAt   time.Time
	SessionNumber    int
	WorkDir          string
	AllowedUsers     []string
	InteractivePerms bool

	SessionHeaderPostID string
	SessionStartPostID  string
	LifecyclePostID     string

	lifecycle            Lifecycle
	timeoutWarningPosted bool
	resumeFailCount      int
	messageCount         int
	lastError            string
	planApproved         bool

	AISessionUUID string
	Worktree      *WorktreeBinding

	Process    *aicli.Process
	Dispatcher *executor.Dispatcher

	// PumpDone is closed by the goroutine draining Process.Events() when
	// that goroutine returns. A respawn must wait on the outgoing
	// Process's PumpDone before starting a new pump goroutine, since
	// Process.Kill only waits for the child to exit, not for every
	// buffered event already read off its Events() channel to finish
	// being dispatched.
	PumpDone chan struct{}
}

// WorktreeBinding mirrors store.WorktreeSnapshot for the live session.
type WorktreeBinding struct {
	RepoRoot        string
	WorktreePath    string
	Branch          string
	IsWorktreeOwner bool
}

// GetLifecycle returns the session's current coarse state.
func (s *Session) GetLifecycle() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle
}

// SetLifecycle transitions the session to a new coarse state.
func (s *Session) SetLifecycle(l Lifecycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifecycle = l
}

// LastActivityAt returns the last time any activity was recorded.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

// TouchActivity updates lastActivityAt and clears any posted idle
// warning — spec.md §4.11: "any user message, tool result, reaction
// consumed, or outbound post updates lastActivityAt and clears
// timeoutWarningPosted."
func (s *Session) TouchActivity(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityAt = now
	s.timeoutWarningPosted = false
}

// TimeoutWarningPosted reports whether an idle warning has already
// been posted since the last activity.
func (s *Session) TimeoutWarningPosted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeoutWarningPosted
}

// MarkTimeoutWarningPosted records that the idle warning was posted.
func (s *Session) MarkTimeoutWarningPosted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeoutWarningPosted = true
}

// IncrementMessageCount bumps the turn counter and returns the new
// value.
func (s *Session) IncrementMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCount++
	return s.messageCount
}

// MessageCount returns the current turn counter.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// SetPlanApproved records a plan-approval op's resolution.
func (s *Session) SetPlanApproved(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planApproved = v
}

// PlanApproved reports whether the current plan has been approved.
func (s *Session) PlanApproved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planApproved
}

// SetLastError records the most recent error surfaced to the user.
func (s *Session) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// LastError returns the most recently recorded error.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// IncrementResumeFailCount bumps and returns the consecutive
// resume-failure counter.
func (s *Session) IncrementResumeFailCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeFailCount++
	return s.resumeFailCount
}

// ResetResumeFailCount clears the consecutive resume-failure counter.
func (s *Session) ResetResumeFailCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeFailCount = 0
}

// Key returns the composite registry key spec.md §3 migrated the
// store to: "platformId:threadId".
func (s *Session) Key() string {
	return s.PlatformID + ":" + s.ThreadID
}
