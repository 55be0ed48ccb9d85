// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package executor turns the AI CLI's streaming event flow into an
// ordered sequence of high-level operations and routes each to the
// executor that owns its piece of per-session state (spec.md §4.5).
//
// Grounded on the teacher's internal/workflow/runner.go
// (executeStreaming's command-by-command output accumulation and
// OutputUpdate subscriber fan-out) generalized from "shell command
// stdout" to "AI CLI content blocks", and internal/logs/derive.go for
// the general shape of a stateless per-entry transform.
package executor

import "github.com/hollow-creek/chatbridge/internal/aicli"

// OpKind discriminates Op per Design Notes §9's tagged-sum requirement.
type OpKind string

const (
	OpAppendContent OpKind = "append_content"
	OpFlush         OpKind = "flush"
	OpTaskList      OpKind = "task_list"
	OpQuestion      OpKind = "question"
	OpApproval      OpKind = "approval"
	OpSystemMessage OpKind = "system_message"
	OpSubagent      OpKind = "subagent"
	OpStatusUpdate  OpKind = "status_update"
	OpLifecycle     OpKind = "lifecycle"
)

// Op is one high-level operation derived from the AI CLI's event
// stream, per spec.md §4.5's named operation list.
type Op struct {
	Kind OpKind

	// AppendContent / Subagent
	Text      string
	ToolUseID string // non-empty routes AppendContent/Flush to a subagent's nested executor

	// TaskList
	Tasks []TaskItem

	// Question
	Questions []QuestionSpec

	// Approval
	Approval ApprovalRequest

	// SystemMessage
	Severity SystemSeverity

	// StatusUpdate
	Status aicli.StatusFile

	// Lifecycle
	Lifecycle LifecycleKind
}

// TaskItem is one row of an AskUserQuestion-independent task list.
type TaskItem struct {
	ID      string
	Content string
	Status  string // pending|in_progress|completed
}

// QuestionSpec is one question within an AskUserQuestion operation.
type QuestionSpec struct {
	Header  string
	Prompt  string
	Options []string
}

// ApprovalKind discriminates what kind of yes/no decision is pending.
type ApprovalKind string

const (
	ApprovalPermission ApprovalKind = "permission"
	ApprovalPlan       ApprovalKind = "plan"
	ApprovalAction     ApprovalKind = "action"
)

// ApprovalRequest is the payload of an Approval op.
type ApprovalRequest struct {
	Kind      ApprovalKind
	ToolUseID string
	Summary   string
}

// SystemSeverity discriminates a SystemMessage op's emoji prefix.
type SystemSeverity string

const (
	SeverityInfo  SystemSeverity = "info"
	SeverityWarn  SystemSeverity = "warn"
	SeverityError SystemSeverity = "error"
)

// LifecycleKind discriminates a Lifecycle op.
type LifecycleKind string

const (
	LifecycleStarted     LifecycleKind = "started"
	LifecycleTurnEnded    LifecycleKind = "turn_ended"
	LifecycleInterrupted LifecycleKind = "interrupted"
	LifecycleEnded        LifecycleKind = "ended"
)
