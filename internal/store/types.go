// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store persists session snapshots to a single JSON document
// via the tmp+rename pattern, with forward schema migrations and
// soft-delete/history semantics.
//
// Grounded on the teacher's internal/claude/store.go (loadRecords/
// saveRecords tmp+rename) and internal/cases/store.go (load/save-atomic
// pattern over a directory of JSON files), generalized from "one file
// per session plus a flat records array" to spec.md §3/§4.3's single
// versioned document keyed by composite session ID.
package store

import "time"

// CurrentVersion is the document schema version written by this build.
const CurrentVersion = 2

// WorktreeSnapshot mirrors a session's optional worktree binding.
type WorktreeSnapshot struct {
	RepoRoot       string `json:"repoRoot,omitempty"`
	WorktreePath   string `json:"worktreePath,omitempty"`
	Branch         string `json:"branch,omitempty"`
	IsWorktreeOwner bool  `json:"isWorktreeOwner,omitempty"`
}

// PendingApprovalSnapshot mirrors spec.md §3's PendingApproval.
type PendingApprovalSnapshot struct {
	PostID     string     `json:"postId"`
	ToolUseID  string     `json:"toolUseId"`
	Kind       string     `json:"kind"` // permission|plan|action
	Deadline   *time.Time `json:"deadline,omitempty"`
}

// QuestionSnapshot is one question within a PendingQuestionSet.
type QuestionSnapshot struct {
	Header  string               `json:"header"`
	Prompt  string               `json:"prompt"`
	Options []QuestionOptionEntry `json:"options"`
	Answer  *string              `json:"answer,omitempty"`
}

// QuestionOptionEntry is one selectable option within a question.
type QuestionOptionEntry struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// PendingQuestionSetSnapshot mirrors spec.md §3's PendingQuestionSet.
type PendingQuestionSetSnapshot struct {
	ToolUseID    string             `json:"toolUseId"`
	Questions    []QuestionSnapshot `json:"questions"`
	CurrentIndex int                `json:"currentIndex"`
	CurrentPostID string            `json:"currentPostId"`
}

// PendingContextPromptSnapshot mirrors spec.md §3's PendingContextPrompt.
type PendingContextPromptSnapshot struct {
	PostID             string    `json:"postId"`
	QueuedPrompt       string    `json:"queuedPrompt"`
	QueuedFiles        []string  `json:"queuedFiles,omitempty"`
	ThreadMessageCount int       `json:"threadMessageCount"`
	CreatedAt          time.Time `json:"createdAt"`
	AvailableOptions   []int     `json:"availableOptions"`
	Deadline           time.Time `json:"deadline"`
}

// PendingWorktreePromptSnapshot mirrors spec.md §3's
// PendingWorktreePrompt (initial or failure variant, discriminated by
// Variant).
type PendingWorktreePromptSnapshot struct {
	Variant         string   `json:"variant"` // initial|failure
	PostID          string   `json:"postId"`
	BranchSuggestions []string `json:"branchSuggestions,omitempty"`
	QueuedPrompt    string   `json:"queuedPrompt,omitempty"`
	QueuedFiles     []string `json:"queuedFiles,omitempty"`
	FailedBranch    string   `json:"failedBranch,omitempty"`
	ErrorMessage    string   `json:"errorMessage,omitempty"`
	Username        string   `json:"username,omitempty"`
}

// PendingMessageApprovalSnapshot mirrors spec.md §3's PendingMessageApproval.
type PendingMessageApprovalSnapshot struct {
	PostID string `json:"postId"`
	Text   string `json:"text"`
}

// PendingBugReportSnapshot mirrors spec.md §3's PendingBugReport.
type PendingBugReportSnapshot struct {
	PostID  string `json:"postId"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Context string `json:"context"`
}

// TaskEntry is one row of a session's task list.
type TaskEntry struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"` // pending|in_progress|completed
}

// Snapshot is every persisted field of one session (spec.md §3
// "Persisted session snapshot"): all non-transient session state plus
// pending-prompt summaries sufficient to resume.
type Snapshot struct {
	SessionID          string    `json:"sessionId"`
	PlatformID         string    `json:"platformId"`
	ThreadID           string    `json:"threadId"`
	AISessionUUID      string    `json:"aiSessionUuid"`
	StarterUsername    string    `json:"starterUsername"`
	StartedAt          time.Time `json:"startedAt"`
	LastActivityAt     time.Time `json:"lastActivityAt"`
	SessionNumber      int       `json:"sessionNumber"`
	WorkDir            string    `json:"workDir"`
	AllowedUsers       []string  `json:"allowedUsers,omitempty"`
	InteractivePerms   bool      `json:"interactivePermissions"`
	SessionHeaderPostID string   `json:"sessionHeaderPostId,omitempty"`
	SessionStartPostID string    `json:"sessionStartPostId,omitempty"`
	LifecyclePostID    string    `json:"lifecyclePostId,omitempty"`
	TasksPostID        string    `json:"tasksPostId,omitempty"`
	LastTasksContent   string    `json:"lastTasksContent,omitempty"`
	TasksCompleted     bool      `json:"tasksCompleted"`
	TasksMinimized     bool      `json:"tasksMinimized"`
	Tasks              []TaskEntry `json:"tasks,omitempty"`
	Worktree           *WorktreeSnapshot `json:"worktree,omitempty"`
	Lifecycle          string    `json:"lifecycle"` // active|cancelling|interrupted|timing-out|paused|ended
	ResumeFailCount    int       `json:"resumeFailCount"`
	MessageCount       int       `json:"messageCount"`
	TimeoutWarningPosted bool    `json:"timeoutWarningPosted"`
	LastError          string    `json:"lastError,omitempty"`
	PlanApproved       bool      `json:"planApproved"`

	PendingApproval       *PendingApprovalSnapshot        `json:"pendingApproval,omitempty"`
	PendingQuestionSet    *PendingQuestionSetSnapshot      `json:"pendingQuestionSet,omitempty"`
	PendingContextPrompt  *PendingContextPromptSnapshot    `json:"pendingContextPrompt,omitempty"`
	PendingWorktreePrompt *PendingWorktreePromptSnapshot   `json:"pendingWorktreePrompt,omitempty"`
	PendingMessageApproval *PendingMessageApprovalSnapshot `json:"pendingMessageApproval,omitempty"`
	PendingBugReport      *PendingBugReportSnapshot        `json:"pendingBugReport,omitempty"`

	CleanedAt *time.Time `json:"cleanedAt,omitempty"`
}

// Document is the whole on-disk store (spec.md §3 "Persisted store
// document" / §6 session store file layout).
type Document struct {
	Version              int                   `json:"version"`
	Sessions             map[string]Snapshot   `json:"sessions"`
	StickyPostIDs        map[string]string     `json:"stickyPostIds"`
	PlatformEnabledState map[string]bool       `json:"platformEnabledState"`
}

func newDocument() Document {
	return Document{
		Version:              CurrentVersion,
		Sessions:             map[string]Snapshot{},
		StickyPostIDs:        map[string]string{},
		PlatformEnabledState: map[string]bool{},
	}
}
