// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"log/slog"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/hollow-creek/chatbridge/internal/breaker"
	"github.com/hollow-creek/chatbridge/internal/platform"
)

var dmp = diffmatchpatch.New()

// ContentPoster is the subset of platform.Platform the content
// executor drives.
type ContentPoster interface {
	CreatePost(ctx context.Context, channel, text, threadRoot string) (platform.Post, error)
	UpdatePost(ctx context.Context, postID, text string) error
	DeletePost(ctx context.Context, postID string) error
	GetFormatter() platform.Formatter
	GetMessageLimits() platform.MessageLimits
}

// Content maintains a session's current streaming post, per spec.md
// §4.5's content executor. Append accumulates; Flush decides whether
// the pending text fits in the current post, needs an early break at a
// logical boundary, or must start a new post entirely.
//
// Grounded on the teacher's workflow.RealRunner.executeStreaming
// (accumulating stdout into a builder and periodically pushing a
// rendered update), generalized from one growing post to spec.md
// §4.5's split-and-carry-remainder state machine.
type Content struct {
	poster     ContentPoster
	channel    string
	threadRoot string
	log        *slog.Logger

	currentPostID      string
	currentPostContent string
	pendingContent     string

	// onPostReplaced notifies the task-list executor that a new post
	// was created, so "bump tasks to bottom" can re-create its own
	// post below the new one.
	onPostReplaced func()
}

// NewContent builds a Content executor posting into the given channel
// and thread.
func NewContent(poster ContentPoster, channel, threadRoot string, log *slog.Logger) *Content {
	return &Content{poster: poster, channel: channel, threadRoot: threadRoot, log: log}
}

// OnPostReplaced registers a callback invoked whenever Flush starts a
// brand new post (so any post that must stay last in the thread, like
// the task list, can be bumped back below it).
func (c *Content) OnPostReplaced(fn func()) { c.onPostReplaced = fn }

// CurrentPostID returns the post currently being appended to, or "" if
// none exists yet.
func (c *Content) CurrentPostID() string { return c.currentPostID }

// Append accumulates raw text into the pending buffer. It does not post
// anything — callers flush explicitly or via a breaker.
// GoodEnoughToFlushEarly check.
func (c *Content) Append(text string) {
	c.pendingContent += text
}

// PendingLength reports the grapheme length of content not yet posted,
// for callers deciding whether to flush early.
func (c *Content) PendingLength() int {
	return breaker.Length(c.pendingContent)
}

// Flush renders pendingContent, merges it with whatever is already in
// the current post, and posts or updates as needed, splitting at a
// logical breakpoint when the combined content would exceed the
// platform's hard length ceiling or soft height threshold. Afterwards
// pendingContent holds exactly what was not emitted: the remainder
// after a split (posted by the next flush, in a new post), or the
// whole combined text after a failed update. Content has no lock of
// its own; its callers run Append and Flush from one goroutine.
func (c *Content) Flush(ctx context.Context) error {
	if c.pendingContent == "" {
		return nil
	}

	formatter := c.poster.GetFormatter()
	limits := c.poster.GetMessageLimits()

	rendered := formatter.FormatMarkdown(c.pendingContent)
	combined := c.currentPostContent + rendered

	var head, tail string
	splitting := false
	switch {
	case breaker.Length(combined) <= limits.MaxLength && breaker.Length(combined) <= limits.HardThreshold:
		head = combined
	case breaker.Length(combined) > limits.MaxLength:
		head, tail = c.splitForOverflow(combined, limits.MaxLength)
		splitting = true
		c.logOverflow(combined, head)
	default: // over the soft height threshold but under the hard ceiling
		head, tail = c.splitForOverflow(combined, limits.HardThreshold)
		splitting = true
	}

	posted, err := c.post(ctx, head)
	if err != nil {
		return err
	}
	if !posted {
		// spec.md §4.5: on update error, retry the whole combined
		// content on the next flush as a new post — never lose it.
		c.pendingContent = combined
		return nil
	}
	if splitting {
		c.startFreshPost()
		c.pendingContent = tail
		return nil
	}
	c.currentPostContent = combined
	c.pendingContent = ""
	return nil
}

// logOverflow records, at debug level, exactly what got cut from a
// too-long post — a diff between the full combined content and the
// head that was actually posted — so an operator chasing a "message
// too long" report can see the remainder without reconstructing it by
// hand.
func (c *Content) logOverflow(combined, head string) {
	diffs := dmp.DiffMain(combined, head, false)
	c.log.Debug("content exceeded platform max length, splitting", "postId", c.currentPostID, "diff", dmp.DiffPrettyText(diffs))
}

// splitForOverflow finds the best place to cut combined so the head
// stays at or under budget, preferring a recognized breakpoint and
// falling back to a raw grapheme cut (never inside an open fence).
func (c *Content) splitForOverflow(combined string, budget int) (head, tail string) {
	if bp, ok := breaker.LastBreakpointUnder(combined, budget); ok {
		return combined[:bp.Offset], combined[bp.Offset:]
	}
	return breaker.TruncateToGraphemes(combined, budget)
}

// post creates or updates the current post with text. It returns
// posted=false (with a nil error) when an update failed and the
// caller should retry everything on the next flush — per spec.md
// §4.5, an update failure never loses content, it just forces a fresh
// post next time.
func (c *Content) post(ctx context.Context, text string) (posted bool, err error) {
	if text == "" {
		return true, nil
	}
	if c.currentPostID == "" {
		post, err := c.poster.CreatePost(ctx, c.channel, text, c.threadRoot)
		if err != nil {
			return false, err
		}
		c.currentPostID = post.ID
		if c.onPostReplaced != nil {
			c.onPostReplaced()
		}
		return true, nil
	}
	if err := c.poster.UpdatePost(ctx, c.currentPostID, text); err != nil {
		c.log.Warn("content post update failed, will recreate on next flush", "postId", c.currentPostID, "error", err)
		c.currentPostID = ""
		c.currentPostContent = ""
		return false, nil
	}
	return true, nil
}

func (c *Content) startFreshPost() {
	c.currentPostID = ""
	c.currentPostContent = ""
}
