// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Fake is an in-memory Platform used by tests that need a full
// Connect/Inbound loop without a real chat backend. It runs a tiny
// loopback websocket server (mirroring the shape of a real platform's
// event-stream transport) and re-emits whatever is pushed via Push* as
// InboundMessage/InboundReaction values on Inbound().
//
// Grounded on the teacher's fakes for GitExecutor/Spawner: a hand-rolled
// in-memory double behind the same interface, not a mock-generator.
type Fake struct {
	mu        sync.Mutex
	posts     map[string]Post
	pinned    map[string][]string // channel -> postIDs
	reactions map[string][]string // postID -> emoji
	allowed   map[string]bool
	users     map[string]User
	botUser   User
	formatter Formatter
	limits    MessageLimits
	nextID    int

	server  *httptest.Server
	inbound chan any
	conns   []*websocket.Conn
	connsMu sync.Mutex
}

// NewFake builds a Fake using the given Formatter (platform.Mattermost
// or platform.Slack) and message limits.
func NewFake(formatter Formatter, limits MessageLimits) *Fake {
	f := &Fake{
		posts:     make(map[string]Post),
		pinned:    make(map[string][]string),
		reactions: make(map[string][]string),
		allowed:   make(map[string]bool),
		users:     make(map[string]User),
		botUser:   User{ID: "bot", Username: "chatbridge"},
		formatter: formatter,
		limits:    limits,
		inbound:   make(chan any, 64),
	}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.connsMu.Lock()
		f.conns = append(f.conns, conn)
		f.connsMu.Unlock()
	}))
	return f
}

// Allow marks username as permitted to interact with the bot.
func (f *Fake) Allow(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowed[username] = true
}

// AddUser registers a resolvable user.
func (f *Fake) AddUser(u User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.Username] = u
}

// PushMessage enqueues an inbound message event, as if a user had just
// posted. It also broadcasts a frame over the fake's websocket
// loopback so integration tests exercising the transport layer observe
// the same event.
func (f *Fake) PushMessage(msg InboundMessage) {
	f.mu.Lock()
	f.posts[msg.Post.ID] = msg.Post
	f.mu.Unlock()
	f.inbound <- msg
	f.broadcast("message:" + msg.Post.ID)
}

// PushReaction enqueues an inbound reaction event.
func (f *Fake) PushReaction(r InboundReaction) {
	f.inbound <- r
	f.broadcast("reaction:" + r.PostID)
}

func (f *Fake) broadcast(frame string) {
	f.connsMu.Lock()
	defer f.connsMu.Unlock()
	for _, c := range f.conns {
		_ = c.WriteMessage(websocket.TextMessage, []byte(frame))
	}
}

// WSAddr returns the loopback server's ws:// address, for tests that
// want to dial it directly.
func (f *Fake) WSAddr() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *Fake) nextPostID() string {
	f.nextID++
	return "post-" + strconv.Itoa(f.nextID)
}

func (f *Fake) CreatePost(ctx context.Context, channel, text, threadRoot string) (Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := Post{ID: f.nextPostID(), ChannelID: channel, ThreadRoot: threadRoot, UserID: f.botUser.ID, Text: text, CreatedAt: time.Now()}
	f.posts[p.ID] = p
	return p, nil
}

func (f *Fake) UpdatePost(ctx context.Context, postID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return fmt.Errorf("platform: post %s not found", postID)
	}
	p.Text = text
	f.posts[postID] = p
	return nil
}

func (f *Fake) DeletePost(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.posts, postID)
	return nil
}

func (f *Fake) CreateInteractivePost(ctx context.Context, channel, text string, reactions []string, threadRoot string) (Post, error) {
	p, err := f.CreatePost(ctx, channel, text, threadRoot)
	if err != nil {
		return Post{}, err
	}
	for _, emoji := range reactions {
		if err := f.AddReaction(ctx, p.ID, emoji); err != nil {
			return Post{}, err
		}
	}
	return p, nil
}

func (f *Fake) AddReaction(ctx context.Context, postID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[postID] = append(f.reactions[postID], emoji)
	return nil
}

func (f *Fake) RemoveReaction(ctx context.Context, postID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.reactions[postID]
	out := existing[:0]
	for _, e := range existing {
		if e != emoji {
			out = append(out, e)
		}
	}
	f.reactions[postID] = out
	return nil
}

func (f *Fake) GetThreadHistory(ctx context.Context, threadRoot string, limit int, excludeBots bool) ([]ThreadMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var msgs []ThreadMessage
	for _, p := range f.posts {
		if p.ThreadRoot != threadRoot && p.ID != threadRoot {
			continue
		}
		isBot := p.UserID == f.botUser.ID
		if excludeBots && isBot {
			continue
		}
		msgs = append(msgs, ThreadMessage{PostID: p.ID, Username: p.UserID, Text: p.Text, CreatedAt: p.CreatedAt, IsBot: isBot})
		if limit > 0 && len(msgs) >= limit {
			break
		}
	}
	return msgs, nil
}

func (f *Fake) PinPost(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return fmt.Errorf("platform: post %s not found", postID)
	}
	f.pinned[p.ChannelID] = append(f.pinned[p.ChannelID], postID)
	return nil
}

func (f *Fake) UnpinPost(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch, ids := range f.pinned {
		out := ids[:0]
		for _, id := range ids {
			if id != postID {
				out = append(out, id)
			}
		}
		f.pinned[ch] = out
	}
	return nil
}

func (f *Fake) GetPinnedPosts(ctx context.Context, channel string) ([]Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Post
	for _, id := range f.pinned[channel] {
		if p, ok := f.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Fake) GetBotUser(ctx context.Context) (User, error) { return f.botUser, nil }

func (f *Fake) GetUserByUsername(ctx context.Context, name string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[name]
	if !ok {
		return User{}, fmt.Errorf("platform: unknown user %q", name)
	}
	return u, nil
}

func (f *Fake) IsUserAllowed(username string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowed[username]
}

func (f *Fake) IsBotMentioned(text string) bool {
	return strings.Contains(text, "@"+f.botUser.Username)
}

func (f *Fake) ExtractPrompt(text string) string {
	return strings.TrimSpace(strings.Replace(text, "@"+f.botUser.Username, "", 1))
}

func (f *Fake) GetFormatter() Formatter        { return f.formatter }
func (f *Fake) GetMessageLimits() MessageLimits { return f.limits }

func (f *Fake) SendTyping(ctx context.Context, channel string) error { return nil }

func (f *Fake) Connect(ctx context.Context) error { return nil }

func (f *Fake) Disconnect() error {
	f.server.Close()
	close(f.inbound)
	return nil
}

func (f *Fake) Inbound() <-chan any { return f.inbound }

var _ Platform = (*Fake)(nil)
