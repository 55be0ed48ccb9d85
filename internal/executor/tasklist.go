// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"fmt"

	"github.com/hollow-creek/chatbridge/internal/platform"
)

// TaskListPoster is the subset of platform.Platform the task-list
// executor drives.
type TaskListPoster interface {
	CreatePost(ctx context.Context, channel, text, threadRoot string) (platform.Post, error)
	UpdatePost(ctx context.Context, postID, text string) error
	DeletePost(ctx context.Context, postID string) error
	GetFormatter() platform.Formatter
}

// TaskList owns a session's task-list post — spec.md §4.5's
// tasksPostId/lastTasksContent/tasksCompleted/tasksMinimized state.
// It must always be the last bot post in the thread, so whenever the
// content executor starts a fresh post, the caller should invoke
// BumpToBottom to delete-and-recreate the task list below it.
//
// Grounded on the teacher's workflow format.go (rendering a run's step
// list as a table), generalized from a fixed build-step table to
// spec.md's dynamic pending/in_progress/completed task rows.
type TaskList struct {
	poster     TaskListPoster
	channel    string
	threadRoot string

	postID           string
	lastContent      string
	completed        bool
	minimized        bool
}

// NewTaskList builds a TaskList executor.
func NewTaskList(poster TaskListPoster, channel, threadRoot string) *TaskList {
	return &TaskList{poster: poster, channel: channel, threadRoot: threadRoot}
}

// PostID returns the current task-list post ID, or "" if none exists.
func (t *TaskList) PostID() string { return t.postID }

// Minimized reports whether the task list is rendering as a progress
// bar instead of a full table.
func (t *TaskList) Minimized() bool { return t.minimized }

// SetMinimized toggles minimized rendering (e.g. once a session has
// been idle-warned, or the operator issues a minimize command).
func (t *TaskList) SetMinimized(v bool) { t.minimized = v }

// Render applies a TaskList op: recomputes content from tasks and
// posts or updates the task-list post if it changed.
func (t *TaskList) Render(ctx context.Context, tasks []TaskItem) error {
	t.completed = allTasksCompleted(tasks)

	var content string
	if t.completed || t.minimized {
		content = renderProgressBar(tasks)
	} else {
		content = renderTaskTable(t.poster.GetFormatter(), tasks)
	}

	if content == t.lastContent && t.postID != "" {
		return nil
	}
	t.lastContent = content

	if t.postID == "" {
		post, err := t.poster.CreatePost(ctx, t.channel, content, t.threadRoot)
		if err != nil {
			return err
		}
		t.postID = post.ID
		return nil
	}
	return t.poster.UpdatePost(ctx, t.postID, content)
}

// BumpToBottom deletes the current task-list post (if any) and clears
// state so the next Render recreates it, keeping it last in the
// thread per spec.md §4.5.
func (t *TaskList) BumpToBottom(ctx context.Context) error {
	if t.postID == "" {
		return nil
	}
	old := t.postID
	t.postID = ""
	return t.poster.DeletePost(ctx, old)
}

func allTasksCompleted(tasks []TaskItem) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, task := range tasks {
		if task.Status != "completed" {
			return false
		}
	}
	return true
}

func renderProgressBar(tasks []TaskItem) string {
	done := 0
	for _, task := range tasks {
		if task.Status == "completed" {
			done++
		}
	}
	total := len(tasks)
	if total == 0 {
		return "✅ tasks complete"
	}
	filled := done * 10 / total
	bar := ""
	for i := 0; i < 10; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return fmt.Sprintf("%s %d/%d tasks", bar, done, total)
}

func renderTaskTable(formatter platform.Formatter, tasks []TaskItem) string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{statusGlyph(task.Status), task.Content})
	}
	return formatter.FormatTable([]string{"", "Task"}, rows)
}

func statusGlyph(status string) string {
	switch status {
	case "completed":
		return "✅"
	case "in_progress":
		return "🔄"
	default:
		return "⬜"
	}
}
