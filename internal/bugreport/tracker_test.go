// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bugreport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/clock"
)

func TestFileWritesReportAndReturnsReference(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bugs")
	tr := NewTracker(dir, 0, 0, clock.NewFake(time.Now()))

	ref, err := tr.File(context.Background(), "crash on startup", "full body", "session s1")
	require.NoError(t, err)
	assert.Regexp(t, `^BUG-\d{8}-\d{6}-[0-9a-f]{8}$`, ref)

	reports, err := tr.List()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "crash on startup", reports[0].Title)
	assert.Equal(t, "session s1", reports[0].Context)
}

func TestListReturnsNewestFirst(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bugs")
	clk := clock.NewFake(time.Now())
	tr := NewTracker(dir, 0, 0, clk)

	_, err := tr.File(context.Background(), "first", "", "")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = tr.File(context.Background(), "second", "", "")
	require.NoError(t, err)

	reports, err := tr.List()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "second", reports[0].Title)
	assert.Equal(t, "first", reports[1].Title)
}

func TestCleanupPrunesBeyondMaxCount(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bugs")
	clk := clock.NewFake(time.Now())
	tr := NewTracker(dir, 0, 2, clk)

	for i := 0; i < 4; i++ {
		_, err := tr.File(context.Background(), "report", "", "")
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	reports, err := tr.List()
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestCleanupPrunesOlderThanMaxAge(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bugs")
	clk := clock.NewFake(time.Now())
	tr := NewTracker(dir, 500*time.Millisecond, 0, clk)

	_, err := tr.File(context.Background(), "old", "", "")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = tr.File(context.Background(), "new", "", "")
	require.NoError(t, err)

	reports, err := tr.List()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "new", reports[0].Title)
}
