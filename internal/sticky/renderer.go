// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sticky implements spec.md's "sticky channel message": a
// pinned per-channel post summarizing bot status and active sessions,
// refreshed whenever session state changes and by the periodic
// cleanup scan (spec.md §4.8 "refreshes sticky messages").
//
// Grounded on the teacher's internal/api/handlers/dashboard.go, which
// aggregates service and worktree state into a single status page;
// Renderer aggregates the same shape (process version, session
// counts, per-session summary rows) into a chat-platform post body
// instead of an HTML page.
package sticky

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
	"github.com/hollow-creek/chatbridge/internal/store"
)

// Renderer owns the one pinned sticky post for a platform+channel.
type Renderer struct {
	Sessions     *session.Registry
	Store        *store.Store
	Platform     platform.Platform
	PlatformID   string
	Channel      string
	BuildVersion string
	Clock        clock.Clock
	Log          *slog.Logger

	mu       sync.Mutex
	lastBody string
}

// New returns a Renderer. platformID keys the persisted sticky-post-ID
// map (spec.md §4.3 "stickyPostIds"); channel is where the pinned post
// lives.
func New(sessions *session.Registry, st *store.Store, plat platform.Platform, platformID, channel, buildVersion string, clk clock.Clock, log *slog.Logger) *Renderer {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		Sessions:     sessions,
		Store:        st,
		Platform:     plat,
		PlatformID:   platformID,
		Channel:      channel,
		BuildVersion: buildVersion,
		Clock:        clk,
		Log:          log,
	}
}

// Refresh renders the current summary and pushes it to the sticky
// post, creating and pinning one if none exists yet. It's a no-op if
// the rendered body is unchanged since the last call, so frequent
// event-driven callers (session created/updated/removed) don't
// hammer the platform with identical edits.
func (r *Renderer) Refresh(ctx context.Context) error {
	if r.Platform == nil || r.Channel == "" {
		return nil
	}

	body := r.render(r.Clock.Now())

	r.mu.Lock()
	unchanged := body == r.lastBody
	r.mu.Unlock()
	if unchanged {
		return nil
	}

	postID, err := r.currentPostID()
	if err != nil {
		return fmt.Errorf("load sticky post id: %w", err)
	}

	if postID != "" {
		if err := r.Platform.UpdatePost(ctx, postID, body); err == nil {
			r.mu.Lock()
			r.lastBody = body
			r.mu.Unlock()
			return nil
		}
		r.Log.Warn("sticky post missing, recreating", "platformId", r.PlatformID, "postId", postID)
	}

	post, err := r.Platform.CreatePost(ctx, r.Channel, body, "")
	if err != nil {
		return fmt.Errorf("create sticky post: %w", err)
	}
	if err := r.Platform.PinPost(ctx, post.ID); err != nil {
		r.Log.Warn("failed to pin sticky post", "postId", post.ID, "error", err)
	}
	if r.Store != nil {
		if err := r.Store.SetStickyPostID(r.PlatformID, post.ID); err != nil {
			return fmt.Errorf("persist sticky post id: %w", err)
		}
	}

	r.mu.Lock()
	r.lastBody = body
	r.mu.Unlock()
	return nil
}

func (r *Renderer) currentPostID() (string, error) {
	if r.Store == nil {
		return "", nil
	}
	doc, err := r.Store.Load()
	if err != nil {
		return "", err
	}
	return doc.StickyPostIDs[r.PlatformID], nil
}

// render builds the post body. Kept a plain function of
// current state (no I/O) so it can be unit-tested without a fake
// platform.
func (r *Renderer) render(now time.Time) string {
	formatter := platformFormatter(r.Platform)

	sessions := r.Sessions.All()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	var b string
	if formatter != nil {
		b += formatter.FormatHeading("chatbridge status", 2) + "\n\n"
		b += formatter.FormatKeyValueList([][2]string{
			{"Version", r.BuildVersion},
			{"Active sessions", fmt.Sprintf("%d", len(sessions))},
			{"Updated", now.UTC().Format(time.RFC3339)},
		}) + "\n\n"
	} else {
		b += fmt.Sprintf("**chatbridge status**\n\nVersion: %s\nActive sessions: %d\nUpdated: %s\n\n",
			r.BuildVersion, len(sessions), now.UTC().Format(time.RFC3339))
	}

	if len(sessions) == 0 {
		b += "_No active sessions._\n"
		return b
	}

	headers := []string{"#", "Started by", "Started", "State"}
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", sess.SessionNumber),
			sess.StarterUsername,
			sess.StartedAt.UTC().Format(time.RFC3339),
			string(sess.GetLifecycle()),
		})
	}
	if formatter != nil {
		b += formatter.FormatTable(headers, rows)
	} else {
		for _, row := range rows {
			b += fmt.Sprintf("- #%s %s (%s, %s)\n", row[0], row[1], row[2], row[3])
		}
	}
	return b
}

func platformFormatter(p platform.Platform) platform.Formatter {
	if p == nil {
		return nil
	}
	return p.GetFormatter()
}
