// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"fmt"

	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/message"
)

// messageApprovalPayload carries the text awaiting send/discard.
type messageApprovalPayload struct {
	Text string
}

// MessageSentFunc delivers the approved text to its destination (the
// caller decides what "send" means — typically another platform
// channel or an external integration).
type MessageSentFunc func(ctx context.Context, text string) error

// OfferMessageApproval posts a send/discard prompt for text, per
// spec.md §4.6 "Message approval": uncommon but symmetric, +1 sends,
// -1 discards.
func (h *Handlers) OfferMessageApproval(ctx context.Context, text string) error {
	prompt := "Send this message?\n\n" + h.Platform.GetFormatter().FormatBlockquote(text) +
		"\n\n" + EmojiThumbsUp + " send  " + EmojiThumbsDown + " discard"
	post, err := h.Platform.CreateInteractivePost(ctx, h.Session.Channel, prompt, []string{EmojiThumbsUp, EmojiThumbsDown}, h.Session.ThreadID)
	if err != nil {
		return fmt.Errorf("post message approval prompt: %w", err)
	}
	h.Pending.Set(ctx, h.Session.ID, message.Pending{
		Kind:    message.KindMessageApproval,
		PostID:  post.ID,
		Payload: messageApprovalPayload{Text: text},
	}, 0, nil)
	h.Sessions.BindPost(post.ID, h.Session)
	return nil
}

// ResolveMessageApprovalReaction resolves a pending message approval.
func (h *Handlers) ResolveMessageApprovalReaction(ctx context.Context, emoji string, onSend MessageSentFunc) (bool, error) {
	pending, ok := h.Pending.Get(h.Session.ID, message.KindMessageApproval)
	if !ok {
		return false, nil
	}
	payload, ok := pending.Payload.(messageApprovalPayload)
	if !ok {
		return false, nil
	}

	switch emoji {
	case EmojiThumbsUp:
		h.touchActivity()
		h.Pending.Clear(h.Session.ID, message.KindMessageApproval)
		h.Sessions.UnbindPost(pending.PostID)
		if onSend != nil {
			if err := onSend(ctx, payload.Text); err != nil {
				return true, fmt.Errorf("send approved message: %w", err)
			}
		}
		h.publish(ctx, eventbus.KindMessageApproval, map[string]any{"sent": true})
		return true, nil
	case EmojiThumbsDown:
		h.touchActivity()
		h.Pending.Clear(h.Session.ID, message.KindMessageApproval)
		h.Sessions.UnbindPost(pending.PostID)
		h.publish(ctx, eventbus.KindMessageApproval, map[string]any{"sent": false})
		return true, nil
	default:
		return false, nil
	}
}
