// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/platform"
)

func TestTaskListRendersTableThenUpdatesInPlace(t *testing.T) {
	p := newFakePoster(fakeLimits())
	tl := NewTaskList(p, "chan-1", "")

	tasks := []TaskItem{{ID: "1", Content: "write code", Status: "in_progress"}}
	require.NoError(t, tl.Render(context.Background(), tasks))
	assert.Equal(t, 1, p.createCalls)
	firstID := tl.PostID()

	tasks[0].Status = "completed"
	tasks = append(tasks, TaskItem{ID: "2", Content: "write tests", Status: "pending"})
	require.NoError(t, tl.Render(context.Background(), tasks))
	assert.Equal(t, 1, p.createCalls)
	assert.Equal(t, 1, p.updateCalls)
	assert.Equal(t, firstID, tl.PostID())
}

func TestTaskListRendersProgressBarWhenAllComplete(t *testing.T) {
	p := newFakePoster(fakeLimits())
	tl := NewTaskList(p, "chan-1", "")

	tasks := []TaskItem{
		{ID: "1", Content: "a", Status: "completed"},
		{ID: "2", Content: "b", Status: "completed"},
	}
	require.NoError(t, tl.Render(context.Background(), tasks))
	assert.Contains(t, p.posts[tl.PostID()], "2/2")
}

func TestTaskListBumpToBottomClearsPostID(t *testing.T) {
	p := newFakePoster(fakeLimits())
	tl := NewTaskList(p, "chan-1", "")
	require.NoError(t, tl.Render(context.Background(), []TaskItem{{ID: "1", Content: "a", Status: "pending"}}))
	require.NotEmpty(t, tl.PostID())

	require.NoError(t, tl.BumpToBottom(context.Background()))
	assert.Empty(t, tl.PostID())

	require.NoError(t, tl.Render(context.Background(), []TaskItem{{ID: "1", Content: "a", Status: "pending"}}))
	assert.Equal(t, 2, p.createCalls)
}

func fakeLimits() platform.MessageLimits {
	return platform.MessageLimits{MaxLength: 4000, HardThreshold: 3000}
}
