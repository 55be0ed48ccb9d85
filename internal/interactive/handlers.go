// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package interactive implements chatbridge's six prompt-and-resolve
// state machines (spec.md §4.6: permission approval, multi-choice
// question, plan approval, context prompt, worktree prompt, message
// approval) plus the priority-ordered reaction router (spec.md §4.10)
// that feeds them.
//
// Grounded on the teacher's internal/workflow/runner.go for the
// "render a step, wait for its resolution, advance" skeleton every
// handler shares, generalized from workflow steps to chat reactions.
// Deadline bookkeeping for each handler's pending prompt is
// internal/message.Registry's job, not this package's.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hollow-creek/chatbridge/internal/aicli"
	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/executor"
	"github.com/hollow-creek/chatbridge/internal/message"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
)

// Reaction emoji names, shared across every handler's prompt rendering
// and resolution (spec.md §4.6, §4.10).
const (
	EmojiThumbsUp   = "+1"
	EmojiCheckMark  = "white_check_mark"
	EmojiThumbsDown = "-1"
	EmojiX          = "x"
	EmojiStopSign   = "octagonal_sign"
	EmojiPause      = "pause_button"
	EmojiCross      = "cross_mark"
)

// ResumeEmoji is the documented set of reactions that resume a paused
// session when applied to its sessionStartPostId or lifecyclePostId
// (spec.md §4.10).
var ResumeEmoji = map[string]bool{
	"arrows_counterclockwise": true,
	"arrow_forward":           true,
	"repeat":                  true,
}

// numberEmoji maps 1-9 to their keycap emoji names, for multi-choice
// questions and context-prompt/worktree option rendering.
var numberEmoji = [...]string{"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

const contextPromptTimeout = 30 * time.Second

// Handlers is the shared dependency bundle every state machine in this
// package needs, bound to exactly one session: a Handlers is
// constructed alongside a session's executor.Dispatcher and wired in
// as its ApprovalSink/QuestionSink.
type Handlers struct {
	Session  *session.Session
	Platform platform.Platform
	Pending  *message.Registry
	Sessions *session.Registry
	Bus      eventbus.Bus
	Clock    clock.Clock
	Log      *slog.Logger
}

var _ executor.ApprovalSink = (*Handlers)(nil)
var _ executor.QuestionSink = (*Handlers)(nil)

// New builds a Handlers bound to sess.
func New(sess *session.Session, plat platform.Platform, pending *message.Registry, sessions *session.Registry, bus eventbus.Bus, clk clock.Clock, log *slog.Logger) *Handlers {
	return &Handlers{
		Session:  sess,
		Platform: plat,
		Pending:  pending,
		Sessions: sessions,
		Bus:      bus,
		Clock:    clk,
		Log:      log,
	}
}

// sendToolResult writes a single tool_result content block to the
// bound session's AI child.
func (h *Handlers) sendToolResult(toolUseID, text string) error {
	if h.Session.Process == nil {
		return fmt.Errorf("interactive: session %s has no attached process", h.Session.ID)
	}
	return h.Session.Process.SendToolResult(toolUseID, []byte(quoteJSON(text)))
}

// sendUserMessage writes a fresh user turn to the bound session's AI
// child.
func (h *Handlers) sendUserMessage(text string) error {
	if h.Session.Process == nil {
		return fmt.Errorf("interactive: session %s has no attached process", h.Session.ID)
	}
	return h.Session.Process.SendMessage([]aicli.ContentBlock{{Type: "text", Text: text}})
}

// touchActivity records that the session consumed a reaction or user
// reply, per spec.md §4.11's activity-tracking rule.
func (h *Handlers) touchActivity() {
	h.Session.TouchActivity(h.Clock.Now())
}

// quoteJSON renders text as a JSON string literal, the wire shape
// aicli.Process.SendToolResult's content parameter expects for a plain
// text tool result.
func quoteJSON(text string) string {
	b, err := json.Marshal(text)
	if err != nil {
		return `""`
	}
	return string(b)
}

func (h *Handlers) publish(ctx context.Context, kind eventbus.Kind, payload map[string]any) {
	if h.Bus == nil {
		return
	}
	if err := h.Bus.Publish(ctx, eventbus.Event{
		Kind:      kind,
		Timestamp: h.Clock.Now(),
		SessionID: h.Session.ID,
		Payload:   payload,
	}); err != nil {
		h.Log.Warn("failed to publish event", "kind", kind, "error", err)
	}
}
