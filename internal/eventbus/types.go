// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package eventbus is chatbridge's typed, in-process pub/sub backbone.
// Design Notes §9 calls for replacing dynamic "emit any string event"
// components with a fixed set of kinds per component; Kind is that
// fixed set, and Event carries it instead of a free-form string.
package eventbus

import (
	"context"
	"time"
)

// Kind enumerates every event chatbridge's components emit. New kinds
// must be added here, never invented ad hoc at a call site.
type Kind string

const (
	KindApprovalComplete   Kind = "approval.complete"
	KindQuestionComplete   Kind = "question.complete"
	KindPlanApproved       Kind = "plan.approved"
	KindContextComplete    Kind = "context.complete"
	KindWorktreeComplete   Kind = "worktree.complete"
	KindBugReportComplete  Kind = "bugreport.complete"
	KindMessageApproval    Kind = "message.approval"
	KindSessionCreated     Kind = "session.created"
	KindSessionUpdated     Kind = "session.updated"
	KindSessionRemoved     Kind = "session.removed"
	KindSessionLifecycle   Kind = "session.lifecycle"
	KindReactionConsumed   Kind = "reaction.consumed"
	KindWorktreeCreated    Kind = "worktree.created"
	KindWorktreeRemoved    Kind = "worktree.removed"
	KindUpdateAvailable    Kind = "update.available"
	KindUpdateInstalling   Kind = "update.installing"
	KindCleanupRan         Kind = "cleanup.ran"
)

// Event is an immutable event record. Payload is a small, typed map —
// components document the keys they publish in a doc comment above
// their Publish call.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	SessionID string // empty for process-wide events (cleanup, update)
	Payload   map[string]any
}

// Handler processes a received event. A non-nil error is logged by the
// bus but never propagated to the publisher.
type Handler func(ctx context.Context, evt Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// Filter narrows a History query.
type Filter struct {
	Kinds     []Kind
	SessionID string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Bus is the pub/sub contract every component depends on.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(kinds []Kind, handler Handler) (SubscriptionID, error)
	SubscribeAsync(kinds []Kind, handler Handler, bufferSize int) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID) error
	History(filter Filter) ([]Event, error)
	Close() error
}
