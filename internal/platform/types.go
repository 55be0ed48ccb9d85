// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package platform defines the contract chatbridge's core depends on
// to talk to whatever chat platform is hosting it, and the two
// Formatter dialects (Mattermost, Slack) that render the same
// semantic markdown operations into platform-specific text.
//
// Grounded on the teacher's interface-first style for external
// dependencies (worktree.GitExecutor, aicli.Spawner) applied to the
// one concrete chat-platform reference available in the pack
// (other_examples' Mattermost plugin kvstore, for post/thread/reaction
// record shapes).
package platform

import (
	"context"
	"time"
)

// Post is a created or fetched chat message.
type Post struct {
	ID        string
	ChannelID string
	ThreadRoot string
	UserID    string
	Text      string
	CreatedAt time.Time
}

// ThreadMessage is one message returned by GetThreadHistory.
type ThreadMessage struct {
	PostID    string
	Username  string
	Text      string
	CreatedAt time.Time
	IsBot     bool
}

// User identifies a platform account.
type User struct {
	ID       string
	Username string
}

// MessageLimits describes platform-specific content constraints.
type MessageLimits struct {
	MaxLength    int // hard character/grapheme ceiling before a post must split
	HardThreshold int // soft height threshold beyond which an early break is preferred
}

// ReactionAction discriminates an inbound reaction event.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)

// InboundMessage is a `message` inbound event.
type InboundMessage struct {
	Post Post
	User User
}

// InboundReaction is a `reaction` inbound event.
type InboundReaction struct {
	PostID    string
	UserID    string
	EmojiName string
	Action    ReactionAction
}

// Platform is the contract the core depends on (spec.md §6). The
// transport (websocket, long-poll, webhook) implementing it is out of
// spec scope; chatbridge only requires these operations plus an
// inbound event stream.
type Platform interface {
	CreatePost(ctx context.Context, channel, text string, threadRoot string) (Post, error)
	UpdatePost(ctx context.Context, postID, text string) error
	DeletePost(ctx context.Context, postID string) error
	CreateInteractivePost(ctx context.Context, channel, text string, reactions []string, threadRoot string) (Post, error)
	AddReaction(ctx context.Context, postID, emoji string) error
	RemoveReaction(ctx context.Context, postID, emoji string) error
	GetThreadHistory(ctx context.Context, threadRoot string, limit int, excludeBots bool) ([]ThreadMessage, error)
	PinPost(ctx context.Context, postID string) error
	UnpinPost(ctx context.Context, postID string) error
	GetPinnedPosts(ctx context.Context, channel string) ([]Post, error)
	GetBotUser(ctx context.Context) (User, error)
	GetUserByUsername(ctx context.Context, name string) (User, error)
	IsUserAllowed(username string) bool
	IsBotMentioned(text string) bool
	ExtractPrompt(text string) string
	GetFormatter() Formatter
	GetMessageLimits() MessageLimits
	SendTyping(ctx context.Context, channel string) error
	Connect(ctx context.Context) error
	Disconnect() error
	Inbound() <-chan any // elements are InboundMessage or InboundReaction
}

// Formatter renders semantic markdown operations into a platform's
// dialect. Both Mattermost and Slack implement this same 15-method
// contract (spec.md §6).
type Formatter interface {
	FormatBold(text string) string
	FormatItalic(text string) string
	FormatCode(text string) string
	FormatCodeBlock(code, language string) string
	FormatLink(text, url string) string
	FormatHeading(text string, level int) string
	FormatTable(headers []string, rows [][]string) string
	FormatKeyValueList(pairs [][2]string) string
	FormatBlockquote(text string) string
	FormatListItem(text string, indent int) string
	FormatNumberedListItem(text string, n, indent int) string
	FormatStrikethrough(text string) string
	FormatHorizontalRule() string
	EscapeText(text string) string
	FormatMarkdown(text string) string
}
