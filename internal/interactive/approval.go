// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"fmt"

	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/executor"
	"github.com/hollow-creek/chatbridge/internal/message"
)

// approvalPayload is the message.Pending.Payload carried for both
// ApprovalPermission and ApprovalPlan kinds.
type approvalPayload struct {
	Kind      executor.ApprovalKind
	ToolUseID string
	Summary   string
}

// HandleApproval implements executor.ApprovalSink: it posts a prompt
// for the approval request and registers it with the pending registry
// (spec.md §4.6 "permission approval" and "plan approval").
func (h *Handlers) HandleApproval(ctx context.Context, req executor.ApprovalRequest) error {
	var text string
	var reactions []string
	switch req.Kind {
	case executor.ApprovalPlan:
		text = h.Platform.GetFormatter().FormatHeading("Plan", 3) + "\n\n" + req.Summary +
			"\n\n" + EmojiThumbsUp + " approve  " + EmojiThumbsDown + " reject"
		reactions = []string{EmojiThumbsUp, EmojiThumbsDown}
	default:
		text = "Approval requested: " + req.Summary +
			"\n\n" + EmojiThumbsUp + " allow once  " + EmojiCheckMark + " allow for session  " + EmojiThumbsDown + " deny"
		reactions = []string{EmojiThumbsUp, EmojiCheckMark, EmojiThumbsDown}
	}

	post, err := h.Platform.CreateInteractivePost(ctx, h.Session.Channel, text, reactions, h.Session.ThreadID)
	if err != nil {
		return fmt.Errorf("post approval prompt: %w", err)
	}

	h.Pending.Set(ctx, h.Session.ID, message.Pending{
		Kind:   message.KindApproval,
		PostID: post.ID,
		Payload: approvalPayload{
			Kind:      req.Kind,
			ToolUseID: req.ToolUseID,
			Summary:   req.Summary,
		},
	}, 0, nil) // spec.md §4.6: default approval timeout is none

	h.Sessions.BindPost(post.ID, h.Session)
	return nil
}

// ResolveApprovalReaction resolves a pending approval against an
// inbound reaction emoji. It returns true if the reaction was
// consumed.
func (h *Handlers) ResolveApprovalReaction(ctx context.Context, emoji string) (bool, error) {
	pending, ok := h.Pending.Get(h.Session.ID, message.KindApproval)
	if !ok {
		return false, nil
	}
	payload, ok := pending.Payload.(approvalPayload)
	if !ok {
		return false, nil
	}

	switch payload.Kind {
	case executor.ApprovalPlan:
		return h.resolvePlanApproval(ctx, pending, payload, emoji)
	default:
		return h.resolvePermissionApproval(ctx, pending, payload, emoji)
	}
}

func (h *Handlers) resolvePermissionApproval(ctx context.Context, pending message.Pending, payload approvalPayload, emoji string) (bool, error) {
	var resultText string
	switch emoji {
	case EmojiThumbsUp:
		resultText = "approved (once)"
	case EmojiCheckMark:
		resultText = "approved (session-wide rule)"
		h.Session.SetLastError("") // clears any stale denial note
	case EmojiThumbsDown:
		resultText = "denied"
	default:
		return false, nil
	}

	h.touchActivity()
	h.Pending.Clear(h.Session.ID, message.KindApproval)
	h.Sessions.UnbindPost(pending.PostID)

	if err := h.sendToolResult(payload.ToolUseID, resultText); err != nil {
		return true, fmt.Errorf("send approval tool result: %w", err)
	}
	h.publish(ctx, eventbus.KindApprovalComplete, map[string]any{"toolUseId": payload.ToolUseID, "result": resultText})
	return true, nil
}

func (h *Handlers) resolvePlanApproval(ctx context.Context, pending message.Pending, payload approvalPayload, emoji string) (bool, error) {
	switch emoji {
	case EmojiThumbsUp:
		h.touchActivity()
		h.Session.SetPlanApproved(true)
		h.Pending.Clear(h.Session.ID, message.KindApproval)
		h.Pending.Clear(h.Session.ID, message.KindQuestionSet) // stale plan-mode questions
		h.Sessions.UnbindPost(pending.PostID)
		if err := h.sendUserMessage("Plan approved! Please proceed with the implementation."); err != nil {
			return true, fmt.Errorf("send plan approval message: %w", err)
		}
		h.publish(ctx, eventbus.KindPlanApproved, nil)
		return true, nil
	case EmojiThumbsDown:
		h.touchActivity()
		h.Pending.Clear(h.Session.ID, message.KindApproval)
		h.Sessions.UnbindPost(pending.PostID)
		if err := h.sendUserMessage("Plan rejected. Please revise and propose a new plan."); err != nil {
			return true, fmt.Errorf("send plan rejection message: %w", err)
		}
		return true, nil
	default:
		return false, nil
	}
}
