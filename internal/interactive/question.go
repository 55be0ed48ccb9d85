// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/executor"
	"github.com/hollow-creek/chatbridge/internal/message"
)

// questionSetPayload tracks progress through a multi-question
// AskUserQuestion operation (spec.md §4.6 "Multi-choice question").
type questionSetPayload struct {
	ToolUseID string
	Questions []executor.QuestionSpec
	Answers   []string
	Index     int
}

// HandleQuestion implements executor.QuestionSink: it posts the first
// question in the set and registers the set with the pending registry.
func (h *Handlers) HandleQuestion(ctx context.Context, toolUseID string, questions []executor.QuestionSpec) error {
	if len(questions) == 0 {
		return nil
	}
	payload := &questionSetPayload{
		ToolUseID: toolUseID,
		Questions: questions,
		Answers:   make([]string, len(questions)),
	}
	return h.postQuestion(ctx, payload)
}

func (h *Handlers) postQuestion(ctx context.Context, payload *questionSetPayload) error {
	q := payload.Questions[payload.Index]

	var b strings.Builder
	b.WriteString(h.Platform.GetFormatter().FormatHeading(q.Header, 4))
	b.WriteString("\n\n")
	b.WriteString(q.Prompt)
	b.WriteString("\n\n")
	reactions := make([]string, 0, len(q.Options))
	for i, opt := range q.Options {
		n := i + 1
		if n > 9 {
			break // spec.md §4.6 reactions only cover 1️⃣…9️⃣
		}
		b.WriteString(fmt.Sprintf("%d. %s\n", n, opt))
		reactions = append(reactions, numberEmoji[n])
	}

	post, err := h.Platform.CreateInteractivePost(ctx, h.Session.Channel, b.String(), reactions, h.Session.ThreadID)
	if err != nil {
		return fmt.Errorf("post question: %w", err)
	}

	h.Pending.Set(ctx, h.Session.ID, message.Pending{
		Kind:    message.KindQuestionSet,
		PostID:  post.ID,
		Payload: payload,
	}, 0, nil)
	h.Sessions.BindPost(post.ID, h.Session)
	return nil
}

// ResolveQuestionReaction resolves the current question against an
// inbound reaction emoji (one of the keycap numbers).
func (h *Handlers) ResolveQuestionReaction(ctx context.Context, emoji string) (bool, error) {
	n := numberFromEmoji(emoji)
	if n == 0 {
		return false, nil
	}
	return h.resolveQuestionAnswer(ctx, n)
}

// ResolveQuestionText resolves the current question against a
// number-prefixed text reply (spec.md §4.6: "2").
func (h *Handlers) ResolveQuestionText(ctx context.Context, text string) (bool, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false, nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > 9 {
		return false, nil
	}
	return h.resolveQuestionAnswer(ctx, n)
}

func (h *Handlers) resolveQuestionAnswer(ctx context.Context, n int) (bool, error) {
	pending, ok := h.Pending.Get(h.Session.ID, message.KindQuestionSet)
	if !ok {
		return false, nil
	}
	payload, ok := pending.Payload.(*questionSetPayload)
	if !ok {
		return false, nil
	}
	q := payload.Questions[payload.Index]
	if n > len(q.Options) {
		return false, nil
	}

	h.touchActivity()
	payload.Answers[payload.Index] = q.Options[n-1]
	payload.Index++
	h.Sessions.UnbindPost(pending.PostID)

	if payload.Index < len(payload.Questions) {
		if err := h.postQuestion(ctx, payload); err != nil {
			return true, err
		}
		return true, nil
	}

	h.Pending.Clear(h.Session.ID, message.KindQuestionSet)
	if err := h.sendToolResult(payload.ToolUseID, formatCompoundAnswer(payload)); err != nil {
		return true, fmt.Errorf("send question set tool result: %w", err)
	}
	h.publish(ctx, eventbus.KindQuestionComplete, map[string]any{"toolUseId": payload.ToolUseID})
	return true, nil
}

func formatCompoundAnswer(payload *questionSetPayload) string {
	var b strings.Builder
	for i, q := range payload.Questions {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(q.Header)
		b.WriteString(": ")
		b.WriteString(payload.Answers[i])
	}
	return b.String()
}

func numberFromEmoji(emoji string) int {
	for i, name := range numberEmoji {
		if i == 0 {
			continue
		}
		if name == emoji {
			return i
		}
	}
	return 0
}
