// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import "sync"

// Registry indexes live sessions by (platformId, threadId) — spec.md
// §4.2's Session Registry — and maintains a secondary post→session
// index so the reaction router can resolve a reaction on any post a
// session owns (header, content, task list, or a pending prompt) back
// to its session without a linear scan.
type Registry struct {
	mu        sync.RWMutex
	byKey     map[string]*Session // "platformId:threadId" -> session
	byPostID  map[string]*Session
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:    make(map[string]*Session),
		byPostID: make(map[string]*Session),
	}
}

// Insert registers sess under its composite key. Callers should also
// call BindPost for every post ID the session owns (header, start,
// lifecycle, pending prompts) as they're created.
func (r *Registry) Insert(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[sess.Key()] = sess
}

// Remove deregisters sess and every post bound to it.
func (r *Registry) Remove(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, sess.Key())
	for postID, s := range r.byPostID {
		if s == sess {
			delete(r.byPostID, postID)
		}
	}
}

// Get looks up a session by platform and thread.
func (r *Registry) Get(platformID, threadID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byKey[platformID+":"+threadID]
	return sess, ok
}

// BindPost associates postID with sess, for later reaction routing.
func (r *Registry) BindPost(postID string, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPostID[postID] = sess
}

// UnbindPost removes a post-to-session association (e.g. when a
// pending prompt resolves and its post is no longer actionable).
func (r *Registry) UnbindPost(postID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPostID, postID)
}

// BySessionPost resolves an inbound reaction's post ID back to its
// owning session.
func (r *Registry) BySessionPost(postID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byPostID[postID]
	return sess, ok
}

// All returns a snapshot slice of every registered session, for the
// idle monitor and cleanup scheduler to walk.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byKey))
	for _, sess := range r.byKey {
		out = append(out, sess)
	}
	return out
}

// Count returns the number of active sessions — the auto-update
// coordinator's idle/quiet modes key off this.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}
