// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"fmt"
	"strings"

	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/message"
)

// WorktreeVariant discriminates the two worktree prompt flavors spec.md
// §4.6 describes.
type WorktreeVariant string

const (
	WorktreeInitial WorktreeVariant = "initial"
	WorktreeFailure WorktreeVariant = "failure"
)

// worktreePromptPayload carries the state needed to resolve either
// flavor of worktree prompt.
type worktreePromptPayload struct {
	Variant           WorktreeVariant
	BranchSuggestions []string
	QueuedPrompt      string
	QueuedFiles       []string
	FailedBranch      string
	ErrorMessage      string
}

// OfferInitialWorktreePrompt posts the initial "create a worktree?"
// prompt when worktree mode is "prompt" and uncommitted changes were
// detected.
func (h *Handlers) OfferInitialWorktreePrompt(ctx context.Context, branchSuggestions []string, queuedPrompt string, queuedFiles []string) error {
	var b strings.Builder
	b.WriteString("This repository has uncommitted changes. Create an isolated worktree for this session?\n\n")
	reactions := make([]string, 0, len(branchSuggestions)+1)
	for i, branch := range branchSuggestions {
		n := i + 1
		if n > 9 {
			break
		}
		b.WriteString(fmt.Sprintf("%d. %s\n", n, branch))
		reactions = append(reactions, numberEmoji[n])
	}
	b.WriteString(EmojiCross + " skip (work in place)\n")
	b.WriteString("\nOr reply with a branch name directly.")
	reactions = append(reactions, EmojiCross)

	post, err := h.Platform.CreateInteractivePost(ctx, h.Session.Channel, b.String(), reactions, h.Session.ThreadID)
	if err != nil {
		return fmt.Errorf("post worktree prompt: %w", err)
	}

	payload := worktreePromptPayload{Variant: WorktreeInitial, BranchSuggestions: branchSuggestions, QueuedPrompt: queuedPrompt, QueuedFiles: queuedFiles}
	h.Pending.Set(ctx, h.Session.ID, message.Pending{Kind: message.KindWorktreePrompt, PostID: post.ID, Payload: payload}, 0, nil)
	h.Sessions.BindPost(post.ID, h.Session)
	return nil
}

// OfferWorktreeFailurePrompt posts the retry/skip prompt after a
// `git worktree add` failure.
func (h *Handlers) OfferWorktreeFailurePrompt(ctx context.Context, failedBranch, errMsg, queuedPrompt string, queuedFiles []string) error {
	text := fmt.Sprintf("Failed to create worktree for branch %q: %s\n\nReply with another branch name to retry, or react %s to skip.", failedBranch, errMsg, EmojiCross)
	post, err := h.Platform.CreateInteractivePost(ctx, h.Session.Channel, text, []string{EmojiCross}, h.Session.ThreadID)
	if err != nil {
		return fmt.Errorf("post worktree failure prompt: %w", err)
	}
	payload := worktreePromptPayload{Variant: WorktreeFailure, FailedBranch: failedBranch, ErrorMessage: errMsg, QueuedPrompt: queuedPrompt, QueuedFiles: queuedFiles}
	h.Pending.Set(ctx, h.Session.ID, message.Pending{Kind: message.KindWorktreePrompt, PostID: post.ID, Payload: payload}, 0, nil)
	h.Sessions.BindPost(post.ID, h.Session)
	return nil
}

// WorktreeDecision is what a resolved worktree prompt asks the caller
// (typically the session lifecycle controller) to do next.
type WorktreeDecision struct {
	SessionID    string // the session whose worktree prompt resolved
	Skip         bool
	BranchName   string // non-empty if a branch was chosen or typed
	QueuedPrompt string
	QueuedFiles  []string
}

// WorktreeResolvedFunc is invoked once a worktree prompt resolves.
type WorktreeResolvedFunc func(ctx context.Context, decision WorktreeDecision)

// ResolveWorktreeReaction resolves a pending worktree prompt against a
// reaction (a numbered branch suggestion, or skip).
func (h *Handlers) ResolveWorktreeReaction(ctx context.Context, emoji string, onResolved WorktreeResolvedFunc) (bool, error) {
	pending, ok := h.Pending.Get(h.Session.ID, message.KindWorktreePrompt)
	if !ok {
		return false, nil
	}
	payload, ok := pending.Payload.(worktreePromptPayload)
	if !ok {
		return false, nil
	}

	if emoji == EmojiCross {
		h.clearWorktreePrompt(pending)
		onResolved(ctx, WorktreeDecision{SessionID: h.Session.ID, Skip: true, QueuedPrompt: payload.QueuedPrompt, QueuedFiles: payload.QueuedFiles})
		h.publish(ctx, eventbus.KindWorktreeComplete, map[string]any{"skipped": true})
		return true, nil
	}
	if payload.Variant != WorktreeInitial {
		return false, nil
	}
	n := numberFromEmoji(emoji)
	if n == 0 || n > len(payload.BranchSuggestions) {
		return false, nil
	}
	h.clearWorktreePrompt(pending)
	onResolved(ctx, WorktreeDecision{SessionID: h.Session.ID, BranchName: payload.BranchSuggestions[n-1], QueuedPrompt: payload.QueuedPrompt, QueuedFiles: payload.QueuedFiles})
	h.publish(ctx, eventbus.KindWorktreeComplete, map[string]any{"branch": payload.BranchSuggestions[n-1]})
	return true, nil
}

// ResolveWorktreeText resolves a pending worktree prompt against a
// free-form branch-name reply (valid for both flavors).
func (h *Handlers) ResolveWorktreeText(ctx context.Context, text string, onResolved WorktreeResolvedFunc) (bool, error) {
	pending, ok := h.Pending.Get(h.Session.ID, message.KindWorktreePrompt)
	if !ok {
		return false, nil
	}
	payload, ok := pending.Payload.(worktreePromptPayload)
	if !ok {
		return false, nil
	}
	branch := strings.TrimSpace(text)
	if branch == "" {
		return false, nil
	}
	h.clearWorktreePrompt(pending)
	onResolved(ctx, WorktreeDecision{SessionID: h.Session.ID, BranchName: branch, QueuedPrompt: payload.QueuedPrompt, QueuedFiles: payload.QueuedFiles})
	h.publish(ctx, eventbus.KindWorktreeComplete, map[string]any{"branch": branch})
	return true, nil
}

func (h *Handlers) clearWorktreePrompt(pending message.Pending) {
	h.touchActivity()
	h.Pending.Clear(h.Session.ID, message.KindWorktreePrompt)
	h.Sessions.UnbindPost(pending.PostID)
}
