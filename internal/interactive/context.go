// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"fmt"
	"strings"

	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/message"
	"github.com/hollow-creek/chatbridge/internal/platform"
)

// contextPromptPayload carries what OfferContextPrompt computed so
// ResolveContextPrompt can fetch history and rebuild the queued prompt
// without re-deriving the option list.
type contextPromptPayload struct {
	QueuedPrompt string
	QueuedFiles  []string
	Options      []int // subset of {3,5,10}, in ascending order
	AllN         int   // 0 if no "All N" option was offered
}

const maxHistoryCharsPerMessage = 500

// OfferContextPrompt posts the "include prior thread context?" prompt
// per spec.md §4.6: offered when a session starts mid-thread with ≥2
// prior non-bot messages, or after !cd / worktree creation.
func (h *Handlers) OfferContextPrompt(ctx context.Context, messageCount int, queuedPrompt string, queuedFiles []string) error {
	candidates := []int{3, 5, 10}
	var options []int
	for _, n := range candidates {
		if n <= messageCount {
			options = append(options, n)
		}
	}
	allN := 0
	if len(options) > 0 && messageCount > options[len(options)-1] {
		allN = messageCount
	}
	if messageCount == 0 {
		return h.sendUserMessage(queuedPrompt)
	}
	if len(options) == 0 && allN == 0 {
		// Below the smallest offered threshold (1-2 prior messages):
		// auto-include rather than prompt (spec.md §8 "one-message
		// thread: context is auto-included without prompting").
		prompt := queuedPrompt
		if history, err := h.Platform.GetThreadHistory(ctx, h.Session.ThreadID, messageCount, true); err != nil {
			h.Log.Warn("failed to fetch thread history for auto-context", "error", err)
		} else if len(history) > 0 {
			prompt = buildContextPreamble(history) + prompt
		}
		return h.sendUserMessage(prompt)
	}

	var b strings.Builder
	b.WriteString("Include previous messages from this thread as context?\n\n")
	reactions := make([]string, 0, len(options)+2)
	for i, n := range options {
		b.WriteString(fmt.Sprintf("%d. Last %d messages\n", i+1, n))
		reactions = append(reactions, numberEmoji[i+1])
	}
	if allN > 0 {
		idx := len(options) + 1
		b.WriteString(fmt.Sprintf("%d. All %d messages\n", idx, allN))
		reactions = append(reactions, numberEmoji[idx])
	}
	b.WriteString(EmojiCross + " skip\n")
	reactions = append(reactions, EmojiCross)

	post, err := h.Platform.CreateInteractivePost(ctx, h.Session.Channel, b.String(), reactions, h.Session.ThreadID)
	if err != nil {
		return fmt.Errorf("post context prompt: %w", err)
	}

	payload := contextPromptPayload{QueuedPrompt: queuedPrompt, QueuedFiles: queuedFiles, Options: options, AllN: allN}
	h.Pending.Set(ctx, h.Session.ID, message.Pending{
		Kind:    message.KindContextPrompt,
		PostID:  post.ID,
		Payload: payload,
	}, contextPromptTimeout, h.onContextPromptTimeout)
	h.Sessions.BindPost(post.ID, h.Session)
	return nil
}

func (h *Handlers) onContextPromptTimeout(ctx context.Context, sessionID string, pending message.Pending) {
	payload, ok := pending.Payload.(contextPromptPayload)
	if !ok {
		return
	}
	h.Sessions.UnbindPost(pending.PostID)
	if err := h.sendUserMessage(payload.QueuedPrompt); err != nil {
		h.Log.Warn("failed to send queued prompt after context prompt timeout", "error", err)
	}
}

// ResolveContextReaction resolves a pending context prompt against an
// inbound reaction.
func (h *Handlers) ResolveContextReaction(ctx context.Context, emoji string) (bool, error) {
	pending, ok := h.Pending.Get(h.Session.ID, message.KindContextPrompt)
	if !ok {
		return false, nil
	}
	payload, ok := pending.Payload.(contextPromptPayload)
	if !ok {
		return false, nil
	}

	if emoji == EmojiCross {
		return h.resolveContextPrompt(ctx, pending, payload, 0)
	}
	n := numberFromEmoji(emoji)
	if n == 0 {
		return false, nil
	}
	return h.resolveContextSelection(ctx, pending, payload, n)
}

func (h *Handlers) resolveContextSelection(ctx context.Context, pending message.Pending, payload contextPromptPayload, choice int) (bool, error) {
	var want int
	switch {
	case choice <= len(payload.Options):
		want = payload.Options[choice-1]
	case payload.AllN > 0 && choice == len(payload.Options)+1:
		want = payload.AllN
	default:
		return false, nil
	}
	return h.resolveContextPrompt(ctx, pending, payload, want)
}

// resolveContextPrompt fetches the last want non-bot messages (0 means
// skip), builds the preamble, and sends the combined prompt.
func (h *Handlers) resolveContextPrompt(ctx context.Context, pending message.Pending, payload contextPromptPayload, want int) (bool, error) {
	h.touchActivity()
	h.Pending.Clear(h.Session.ID, message.KindContextPrompt)
	h.Sessions.UnbindPost(pending.PostID)

	prompt := payload.QueuedPrompt
	if want > 0 {
		history, err := h.Platform.GetThreadHistory(ctx, h.Session.ThreadID, want, true)
		if err != nil {
			h.Log.Warn("failed to fetch thread history for context prompt", "error", err)
		} else if len(history) > 0 {
			prompt = buildContextPreamble(history) + prompt
		}
	}

	if err := h.sendUserMessage(prompt); err != nil {
		return true, fmt.Errorf("send context-prefixed prompt: %w", err)
	}
	h.publish(ctx, eventbus.KindContextComplete, map[string]any{"included": want})
	return true, nil
}

// buildContextPreamble renders history (oldest first, as returned by
// GetThreadHistory) as the "[Previous conversation in this thread:]"
// preamble spec.md §4.6 describes, truncating each message at 500
// characters.
func buildContextPreamble(history []platform.ThreadMessage) string {
	var b strings.Builder
	b.WriteString("[Previous conversation in this thread:]\n")
	for _, m := range history {
		b.WriteString("@")
		b.WriteString(m.Username)
		b.WriteString(": ")
		b.WriteString(truncate500(m.Text))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func truncate500(s string) string {
	r := []rune(s)
	if len(r) <= maxHistoryCharsPerMessage {
		return s
	}
	return string(r[:maxHistoryCharsPerMessage]) + "…"
}
