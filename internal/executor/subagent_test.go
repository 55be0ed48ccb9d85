// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubagentStartCreatesOwnPost(t *testing.T) {
	p := newFakePoster(fakeLimits())
	sa := NewSubagent(p, "chan-1", "", slog.Default())

	require.NoError(t, sa.Start(context.Background(), "tool-1", "🔧 Task\n"))
	assert.Equal(t, 1, p.createCalls)

	sa.Append("tool-1", "subagent output")
	require.NoError(t, sa.Flush(context.Background(), "tool-1"))
	assert.Equal(t, 1, p.updateCalls)
}

func TestSubagentTracksMultipleTasksIndependently(t *testing.T) {
	p := newFakePoster(fakeLimits())
	sa := NewSubagent(p, "chan-1", "", slog.Default())

	require.NoError(t, sa.Start(context.Background(), "tool-1", "task one\n"))
	require.NoError(t, sa.Start(context.Background(), "tool-2", "task two\n"))
	assert.Equal(t, 2, p.createCalls)

	sa.Append("tool-1", "more for one")
	sa.Append("tool-2", "more for two")
	require.NoError(t, sa.FlushAll(context.Background()))
	assert.Equal(t, 2, p.updateCalls)

	sa.Done("tool-1")
	sa.Append("tool-1", "fresh task restarts its own post")
	require.NoError(t, sa.Flush(context.Background(), "tool-1"))
	assert.Equal(t, 3, p.createCalls)
}
