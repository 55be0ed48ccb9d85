// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"sync"

	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
	"github.com/hollow-creek/chatbridge/internal/store"
)

// ResumeFunc re-instantiates a paused session from its store snapshot
// (spec.md §4.11 "Resume"). It is injected rather than imported
// directly to keep this package from depending on the session
// lifecycle controller, which already depends on this package's sink
// interfaces being wired into a session's executor.Dispatcher.
type ResumeFunc func(ctx context.Context, snap store.Snapshot) (*session.Session, error)

// Router implements spec.md §4.10: for each inbound reaction, resolve
// the owning session (live or paused) and try each pending-prompt
// handler in priority order, falling through to session-control
// emojis on the session header, then ignoring the reaction.
//
// Grounded on the teacher's internal/events dispatch-by-priority
// pattern (first matching subscriber wins), applied here to reactions
// instead of log-derived events.
type Router struct {
	Sessions *session.Registry
	Store    *store.Store
	Resume   ResumeFunc

	OnWorktreeResolved     WorktreeResolvedFunc
	OnBugReportFiled       BugReportFiledFunc
	OnMessageApprovalSent  MessageSentFunc
	OnSessionCancel        func(ctx context.Context, sess *session.Session)
	OnSessionInterrupt     func(ctx context.Context, sess *session.Session)

	mu       sync.Mutex
	handlers map[string]*Handlers // sessionID -> Handlers
}

// NewRouter builds an empty Router.
func NewRouter(sessions *session.Registry, st *store.Store, resume ResumeFunc) *Router {
	return &Router{Sessions: sessions, Store: st, Resume: resume, handlers: make(map[string]*Handlers)}
}

// Register associates h with its bound session, so Route can find it.
// Call this whenever a session's Handlers is constructed (at session
// start and at resume).
func (r *Router) Register(h *Handlers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Session.ID] = h
}

// Unregister drops a session's Handlers, e.g. on kill.
func (r *Router) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, sessionID)
}

func (r *Router) handlersFor(sessionID string) *Handlers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[sessionID]
}

// Route dispatches one inbound reaction per spec.md §4.10's priority
// list. It returns true if some handler consumed the reaction.
func (r *Router) Route(ctx context.Context, reaction platform.InboundReaction) (bool, error) {
	if reaction.Action != platform.ReactionAdded {
		return false, nil
	}

	sess, ok := r.Sessions.BySessionPost(reaction.PostID)
	if !ok {
		return r.routeToResume(ctx, reaction)
	}

	h := r.handlersFor(sess.ID)
	if h == nil {
		return false, nil
	}

	if consumed, err := h.ResolveApprovalReaction(ctx, reaction.EmojiName); consumed || err != nil {
		return consumed, err
	}
	if consumed, err := h.ResolveQuestionReaction(ctx, reaction.EmojiName); consumed || err != nil {
		return consumed, err
	}
	if consumed, err := h.ResolveContextReaction(ctx, reaction.EmojiName); consumed || err != nil {
		return consumed, err
	}
	if consumed, err := h.ResolveWorktreeReaction(ctx, reaction.EmojiName, r.OnWorktreeResolved); consumed || err != nil {
		return consumed, err
	}
	if consumed, err := h.ResolveMessageApprovalReaction(ctx, reaction.EmojiName, r.OnMessageApprovalSent); consumed || err != nil {
		return consumed, err
	}
	if consumed, err := h.ResolveBugReportReaction(ctx, reaction.EmojiName, r.OnBugReportFiled); consumed || err != nil {
		return consumed, err
	}

	if reaction.PostID == sess.SessionHeaderPostID {
		return r.routeSessionControl(ctx, sess, reaction.EmojiName), nil
	}
	return false, nil
}

func (r *Router) routeSessionControl(ctx context.Context, sess *session.Session, emoji string) bool {
	switch emoji {
	case EmojiX, EmojiStopSign:
		if r.OnSessionCancel != nil {
			r.OnSessionCancel(ctx, sess)
		}
		return true
	case EmojiPause:
		if r.OnSessionInterrupt != nil {
			r.OnSessionInterrupt(ctx, sess)
		}
		return true
	default:
		return false
	}
}

// routeToResume handles a reaction on a post that doesn't belong to
// any live session: if it matches a paused session's remembered post
// IDs and the emoji is a documented resume reaction, resume it.
func (r *Router) routeToResume(ctx context.Context, reaction platform.InboundReaction) (bool, error) {
	if !ResumeEmoji[reaction.EmojiName] {
		return false, nil
	}
	snap, ok, err := r.Store.FindByPostID(reaction.PostID)
	if err != nil || !ok {
		return false, err
	}
	if r.Resume == nil {
		return false, nil
	}
	if _, err := r.Resume(ctx, snap); err != nil {
		return true, err
	}
	return true, nil
}
