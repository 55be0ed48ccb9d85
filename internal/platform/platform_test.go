// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMattermostFormatterBasics(t *testing.T) {
	var f Mattermost
	assert.Equal(t, "**hi**", f.FormatBold("hi"))
	assert.Equal(t, "_hi_", f.FormatItalic("hi"))
	assert.Equal(t, "`hi`", f.FormatCode("hi"))
	assert.Equal(t, "```go\nfmt.Println()\n```", f.FormatCodeBlock("fmt.Println()", "go"))
	assert.Equal(t, "[text](http://x)", f.FormatLink("text", "http://x"))
	assert.Equal(t, "### heading", f.FormatHeading("heading", 3))
	assert.Equal(t, "~~gone~~", f.FormatStrikethrough("gone"))
	assert.Equal(t, "---", f.FormatHorizontalRule())
}

func TestMattermostFormatTableAlignsWideColumns(t *testing.T) {
	var f Mattermost
	out := f.FormatTable([]string{"name", "status"}, [][]string{
		{"session-1", "running"},
		{"s", "ok"},
	})
	assert.Contains(t, out, "| name      | status  |")
	assert.Contains(t, out, "| session-1 | running |")
}

func TestMattermostFormatMarkdownPassesThrough(t *testing.T) {
	var f Mattermost
	in := "**bold** and # heading"
	assert.Equal(t, in, f.FormatMarkdown(in))
}

func TestSlackFormatterBasics(t *testing.T) {
	var f Slack
	assert.Equal(t, "*hi*", f.FormatBold("hi"))
	assert.Equal(t, "<http://x|text>", f.FormatLink("text", "http://x"))
	assert.Equal(t, "~gone~", f.FormatStrikethrough("gone"))
}

func TestSlackFormatMarkdownConvertsDialect(t *testing.T) {
	var f Slack
	out := f.FormatMarkdown("# Title\n**bold** and ~~strike~~")
	assert.Contains(t, out, "*Title*")
	assert.Contains(t, out, "*bold*")
	assert.Contains(t, out, "~strike~")
	assert.NotContains(t, out, "**")
}

func TestSlackEscapeTextEscapesReservedChars(t *testing.T) {
	var f Slack
	assert.Equal(t, "a &lt;b&gt; &amp; c", f.EscapeText("a <b> & c"))
}

func TestFakePlatformCreatePostAndThreadHistory(t *testing.T) {
	ctx := context.Background()
	f := NewFake(Mattermost{}, MessageLimits{MaxLength: 4000, HardThreshold: 3000})
	defer f.Disconnect()

	root, err := f.CreatePost(ctx, "chan-1", "hello", "")
	require.NoError(t, err)

	_, err = f.CreatePost(ctx, "chan-1", "reply", root.ID)
	require.NoError(t, err)

	history, err := f.GetThreadHistory(ctx, root.ID, 10, false)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.ElementsMatch(t, []string{"hello", "reply"}, []string{history[0].Text, history[1].Text})
}

func TestFakePlatformReactionsAndPinning(t *testing.T) {
	ctx := context.Background()
	f := NewFake(Slack{}, MessageLimits{MaxLength: 3000, HardThreshold: 2500})
	defer f.Disconnect()

	post, err := f.CreateInteractivePost(ctx, "chan-1", "approve?", []string{"thumbsup", "thumbsdown"}, "")
	require.NoError(t, err)

	require.NoError(t, f.RemoveReaction(ctx, post.ID, "thumbsdown"))
	require.NoError(t, f.PinPost(ctx, post.ID))

	pinned, err := f.GetPinnedPosts(ctx, "chan-1")
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, post.ID, pinned[0].ID)
}

func TestFakePlatformInboundDelivery(t *testing.T) {
	f := NewFake(Mattermost{}, MessageLimits{MaxLength: 4000, HardThreshold: 3000})
	defer f.Disconnect()

	f.AddUser(User{ID: "u1", Username: "alice"})
	f.PushMessage(InboundMessage{
		Post: Post{ID: "p1", ChannelID: "chan-1", Text: "@chatbridge do the thing"},
		User: User{ID: "u1", Username: "alice"},
	})

	evt := <-f.Inbound()
	msg, ok := evt.(InboundMessage)
	require.True(t, ok)
	assert.Equal(t, "p1", msg.Post.ID)
	assert.True(t, f.IsBotMentioned(msg.Post.Text))
	assert.Equal(t, "do the thing", f.ExtractPrompt(msg.Post.Text))
}

func TestFakePlatformAllowListing(t *testing.T) {
	f := NewFake(Mattermost{}, MessageLimits{MaxLength: 4000, HardThreshold: 3000})
	defer f.Disconnect()

	assert.False(t, f.IsUserAllowed("bob"))
	f.Allow("bob")
	assert.True(t, f.IsUserAllowed("bob"))
}
