// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/platform"
)

type fakePoster struct {
	posts       map[string]string
	nextID      int
	updateErr   error
	createErr   error
	updateCalls int
	createCalls int
	limits      platform.MessageLimits
	formatter   platform.Formatter
}

func newFakePoster(limits platform.MessageLimits) *fakePoster {
	return &fakePoster{posts: map[string]string{}, limits: limits, formatter: platform.Mattermost{}}
}

func (f *fakePoster) CreatePost(ctx context.Context, channel, text, threadRoot string) (platform.Post, error) {
	f.createCalls++
	if f.createErr != nil {
		return platform.Post{}, f.createErr
	}
	f.nextID++
	id := "p" + string(rune('0'+f.nextID))
	f.posts[id] = text
	return platform.Post{ID: id, ChannelID: channel, ThreadRoot: threadRoot}, nil
}

func (f *fakePoster) UpdatePost(ctx context.Context, postID, text string) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.posts[postID] = text
	return nil
}

func (f *fakePoster) DeletePost(ctx context.Context, postID string) error {
	delete(f.posts, postID)
	return nil
}

func (f *fakePoster) GetFormatter() platform.Formatter        { return f.formatter }
func (f *fakePoster) GetMessageLimits() platform.MessageLimits { return f.limits }

func TestContentFlushCreatesThenUpdatesSamePost(t *testing.T) {
	p := newFakePoster(platform.MessageLimits{MaxLength: 1000, HardThreshold: 1000})
	c := NewContent(p, "chan-1", "", slog.Default())

	c.Append("hello ")
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 1, p.createCalls)
	firstID := c.CurrentPostID()
	assert.Equal(t, "hello ", p.posts[firstID])

	c.Append("world")
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 1, p.createCalls)
	assert.Equal(t, 1, p.updateCalls)
	assert.Equal(t, "hello world", p.posts[firstID])
}

func TestContentFlushSplitsOnOverflow(t *testing.T) {
	p := newFakePoster(platform.MessageLimits{MaxLength: 20, HardThreshold: 20})
	c := NewContent(p, "chan-1", "", slog.Default())

	c.Append("first paragraph here\n\nsecond paragraph that is much longer than the limit")
	require.NoError(t, c.Flush(context.Background()))

	assert.Equal(t, 1, p.createCalls, "overflow posts the part that fits and ends that post")
	assert.Empty(t, c.CurrentPostID(), "the remainder waits for the next flush, in a new post")
}

func TestContentFlushRecoversFromUpdateError(t *testing.T) {
	p := newFakePoster(platform.MessageLimits{MaxLength: 1000, HardThreshold: 1000})
	c := NewContent(p, "chan-1", "", slog.Default())

	c.Append("first")
	require.NoError(t, c.Flush(context.Background()))
	firstID := c.CurrentPostID()

	p.updateErr = errors.New("platform unavailable")
	c.Append(" second")
	require.NoError(t, c.Flush(context.Background()))
	assert.Empty(t, c.CurrentPostID(), "failed update should null the current post")

	p.updateErr = nil
	require.NoError(t, c.Flush(context.Background()))
	newID := c.CurrentPostID()
	assert.NotEqual(t, firstID, newID)
	assert.Equal(t, "first second", p.posts[newID])
}

func TestContentFlushNoopWhenNothingPending(t *testing.T) {
	p := newFakePoster(platform.MessageLimits{MaxLength: 1000, HardThreshold: 1000})
	c := NewContent(p, "chan-1", "", slog.Default())
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 0, p.createCalls)
}

func TestContentOnPostReplacedFiresOnNewPost(t *testing.T) {
	p := newFakePoster(platform.MessageLimits{MaxLength: 1000, HardThreshold: 1000})
	c := NewContent(p, "chan-1", "", slog.Default())

	fired := 0
	c.OnPostReplaced(func() { fired++ })

	c.Append(strings.Repeat("x", 5))
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 1, fired)
}
