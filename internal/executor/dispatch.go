// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"log/slog"

	"github.com/hollow-creek/chatbridge/internal/aicli"
)

// ApprovalSink receives Approval ops for the interactive package to
// turn into a pending-approval prompt. Question ops route the same
// way via QuestionSink. Both are narrow callback interfaces rather
// than a dependency on internal/interactive, so executor never imports
// the package that in turn depends on it.
type ApprovalSink interface {
	HandleApproval(ctx context.Context, req ApprovalRequest) error
}

// QuestionSink receives Question ops.
type QuestionSink interface {
	HandleQuestion(ctx context.Context, toolUseID string, questions []QuestionSpec) error
}

// Dispatcher owns one session's full set of executors and routes each
// Op from Transform to the executor responsible for it, per spec.md
// §4.5's "each operation is routed to the executor that owns its
// state" rule.
type Dispatcher struct {
	Content  *Content
	Tasks    *TaskList
	System   *System
	Subagent *Subagent

	Approvals ApprovalSink
	Questions QuestionSink

	log *slog.Logger
}

// NewDispatcher wires a session's executors together, including the
// bump-to-bottom relationship between Content and TaskList.
func NewDispatcher(content *Content, tasks *TaskList, system *System, subagent *Subagent, approvals ApprovalSink, questions QuestionSink, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{Content: content, Tasks: tasks, System: system, Subagent: subagent, Approvals: approvals, Questions: questions, log: log}
	content.OnPostReplaced(func() {
		// Runs synchronously on the single goroutine driving HandleEvent
		// for this session; TaskList has no mutex of its own and relies
		// on that single-writer invariant.
		if err := tasks.BumpToBottom(context.Background()); err != nil {
			log.Warn("failed to bump task list to bottom", "error", err)
		}
	})
	return d
}

// HandleEvent transforms one AI CLI event and dispatches every
// resulting Op in order.
func (d *Dispatcher) HandleEvent(ctx context.Context, event aicli.Event) error {
	for _, op := range Transform(event) {
		if err := d.Dispatch(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch routes a single Op to its owning executor.
func (d *Dispatcher) Dispatch(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpAppendContent:
		if op.ToolUseID != "" {
			d.Subagent.Append(op.ToolUseID, op.Text)
			return nil
		}
		d.Content.Append(op.Text)
		return nil

	case OpFlush:
		if err := d.Content.Flush(ctx); err != nil {
			return err
		}
		return d.Subagent.FlushAll(ctx)

	case OpTaskList:
		return d.Tasks.Render(ctx, op.Tasks)

	case OpQuestion:
		if d.Questions == nil {
			return nil
		}
		return d.Questions.HandleQuestion(ctx, op.ToolUseID, op.Questions)

	case OpApproval:
		if d.Approvals == nil {
			return nil
		}
		return d.Approvals.HandleApproval(ctx, op.Approval)

	case OpSubagent:
		return d.Subagent.Start(ctx, op.ToolUseID, op.Text)

	case OpSystemMessage:
		return d.System.Post(ctx, op.Severity, op.Text)

	case OpStatusUpdate, OpLifecycle:
		// Carried as informational events only; the session lifecycle
		// state machine observes them via the event bus, not here.
		return nil

	default:
		return nil
	}
}
