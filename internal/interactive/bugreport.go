// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"fmt"

	"github.com/hollow-creek/chatbridge/internal/message"
)

// bugReportPayload carries a drafted bug report awaiting confirmation
// before it's filed with the configured tracker.
type bugReportPayload struct {
	Title   string
	Body    string
	Context string
}

// BugReportFiledFunc files the confirmed report (e.g. opens a tracker
// issue) and returns a reference string (issue URL or ID) to echo back.
type BugReportFiledFunc func(ctx context.Context, title, body, context string) (reference string, err error)

// OfferBugReport posts a confirm/discard prompt for a drafted bug
// report (spec.md §4.6 lists bug report among the persisted pending
// kinds; its prompt/resolve skeleton mirrors message approval).
func (h *Handlers) OfferBugReport(ctx context.Context, title, body, context string) error {
	prompt := h.Platform.GetFormatter().FormatHeading(title, 4) + "\n\n" + body +
		"\n\n" + EmojiThumbsUp + " file  " + EmojiThumbsDown + " discard"
	post, err := h.Platform.CreateInteractivePost(ctx, h.Session.Channel, prompt, []string{EmojiThumbsUp, EmojiThumbsDown}, h.Session.ThreadID)
	if err != nil {
		return fmt.Errorf("post bug report prompt: %w", err)
	}
	h.Pending.Set(ctx, h.Session.ID, message.Pending{
		Kind:    message.KindBugReport,
		PostID:  post.ID,
		Payload: bugReportPayload{Title: title, Body: body, Context: context},
	}, 0, nil)
	h.Sessions.BindPost(post.ID, h.Session)
	return nil
}

// ResolveBugReportReaction resolves a pending bug report.
func (h *Handlers) ResolveBugReportReaction(ctx context.Context, emoji string, onFile BugReportFiledFunc) (bool, error) {
	pending, ok := h.Pending.Get(h.Session.ID, message.KindBugReport)
	if !ok {
		return false, nil
	}
	payload, ok := pending.Payload.(bugReportPayload)
	if !ok {
		return false, nil
	}

	switch emoji {
	case EmojiThumbsUp:
		h.touchActivity()
		h.Pending.Clear(h.Session.ID, message.KindBugReport)
		h.Sessions.UnbindPost(pending.PostID)
		if onFile == nil {
			return true, nil
		}
		ref, err := onFile(ctx, payload.Title, payload.Body, payload.Context)
		if err != nil {
			return true, fmt.Errorf("file bug report: %w", err)
		}
		if err := h.Platform.UpdatePost(ctx, pending.PostID, "Filed: "+ref); err != nil {
			h.Log.Warn("failed to update bug report post with filed reference", "error", err)
		}
		return true, nil
	case EmojiThumbsDown:
		h.touchActivity()
		h.Pending.Clear(h.Session.ID, message.KindBugReport)
		h.Sessions.UnbindPost(pending.PostID)
		return true, nil
	default:
		return false, nil
	}
}
