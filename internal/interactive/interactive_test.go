// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/aicli"
	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/executor"
	"github.com/hollow-creek/chatbridge/internal/message"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
)

type fakeChild struct {
	mu      sync.Mutex
	lines   chan []byte
	errs    chan string
	waited  chan struct{}
	written [][]byte
}

func newFakeChild() *fakeChild {
	return &fakeChild{lines: make(chan []byte, 4), errs: make(chan string, 4), waited: make(chan struct{})}
}

func (f *fakeChild) Stdin() io.WriteCloser { return f }
func (f *fakeChild) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	f.written = append(f.written, cp)
	return len(p), nil
}
func (f *fakeChild) Close() error          { return nil }
func (f *fakeChild) Lines() <-chan []byte  { return f.lines }
func (f *fakeChild) Stderr() <-chan string { return f.errs }
func (f *fakeChild) Pid() int              { return 7 }
func (f *fakeChild) Wait() error           { <-f.waited; return nil }
func (f *fakeChild) Signal(sig os.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.waited:
	default:
		close(f.waited)
		close(f.lines)
		close(f.errs)
	}
	return nil
}

type fakeSpawner struct{ child *fakeChild }

func (s *fakeSpawner) Spawn(ctx context.Context, cfg aicli.SpawnConfig) (aicli.Child, error) {
	return s.child, nil
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	child := newFakeChild()
	proc := aicli.New(&fakeSpawner{child: child}, aicli.SpawnConfig{SessionUUID: "s1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, proc.Start(context.Background()))
	sess := &session.Session{
		ID:         "sess-1",
		PlatformID: "mattermost",
		ThreadID:   "thread-1",
		Channel:    "chan-1",
		Process:    proc,
	}
	sess.SetLifecycle(session.LifecycleActive)
	return sess
}

func newTestHandlers(t *testing.T) (*Handlers, *platform.Fake, *session.Registry) {
	t.Helper()
	fakePlat := platform.NewFake(platform.Mattermost{}, platform.MessageLimits{MaxLength: 4000, HardThreshold: 3500})
	sessions := session.NewRegistry()
	sess := newTestSession(t)
	sessions.Insert(sess)

	bus := eventbus.NewMemoryBus(eventbus.HistoryConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fc := clock.NewFake(time.Now())
	h := New(sess, fakePlat, message.NewRegistry(fc), sessions, bus, fc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, fakePlat, sessions
}

func TestHandleApprovalPostsPromptAndRegistersPending(t *testing.T) {
	h, _, sessions := newTestHandlers(t)
	require.NoError(t, h.HandleApproval(context.Background(), executor.ApprovalRequest{Kind: executor.ApprovalPermission, ToolUseID: "tu1", Summary: "run rm -rf /tmp/x"}))

	pending, ok := h.Pending.Get(h.Session.ID, message.KindApproval)
	require.True(t, ok)
	assert.NotEmpty(t, pending.PostID)

	_, ok = sessions.BySessionPost(pending.PostID)
	assert.True(t, ok)
}

func TestResolveApprovalReactionAllowOnceSendsToolResult(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.HandleApproval(context.Background(), executor.ApprovalRequest{Kind: executor.ApprovalPermission, ToolUseID: "tu1", Summary: "x"}))

	consumed, err := h.ResolveApprovalReaction(context.Background(), EmojiThumbsUp)
	require.NoError(t, err)
	assert.True(t, consumed)

	_, ok := h.Pending.Get(h.Session.ID, message.KindApproval)
	assert.False(t, ok)
}

func TestResolveApprovalReactionIgnoresUnknownEmoji(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.HandleApproval(context.Background(), executor.ApprovalRequest{Kind: executor.ApprovalPermission, ToolUseID: "tu1", Summary: "x"}))

	consumed, err := h.ResolveApprovalReaction(context.Background(), "eyes")
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestPlanApprovalSetsPlanApprovedAndSendsMessage(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.HandleApproval(context.Background(), executor.ApprovalRequest{Kind: executor.ApprovalPlan, Summary: "do the thing"}))

	consumed, err := h.ResolveApprovalReaction(context.Background(), EmojiThumbsUp)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.True(t, h.Session.PlanApproved())
}

func TestMultiChoiceQuestionAdvancesThenCompletes(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	questions := []executor.QuestionSpec{
		{Header: "Q1", Prompt: "pick one", Options: []string{"a", "b"}},
		{Header: "Q2", Prompt: "pick another", Options: []string{"c", "d"}},
	}
	require.NoError(t, h.HandleQuestion(context.Background(), "tu2", questions))

	consumed, err := h.ResolveQuestionReaction(context.Background(), numberEmoji[1])
	require.NoError(t, err)
	assert.True(t, consumed)

	pending, ok := h.Pending.Get(h.Session.ID, message.KindQuestionSet)
	require.True(t, ok)
	payload := pending.Payload.(*questionSetPayload)
	assert.Equal(t, 1, payload.Index)

	consumed, err = h.ResolveQuestionReaction(context.Background(), numberEmoji[2])
	require.NoError(t, err)
	assert.True(t, consumed)

	_, ok = h.Pending.Get(h.Session.ID, message.KindQuestionSet)
	assert.False(t, ok)
}

func TestQuestionTextReplyResolves(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	questions := []executor.QuestionSpec{{Header: "Q1", Prompt: "pick", Options: []string{"a", "b"}}}
	require.NoError(t, h.HandleQuestion(context.Background(), "tu3", questions))

	consumed, err := h.ResolveQuestionText(context.Background(), "2")
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestContextPromptOffersSubsetUnderMessageCount(t *testing.T) {
	h, fakePlat, _ := newTestHandlers(t)
	require.NoError(t, h.OfferContextPrompt(context.Background(), 4, "do the task", nil))

	pending, ok := h.Pending.Get(h.Session.ID, message.KindContextPrompt)
	require.True(t, ok)
	payload := pending.Payload.(contextPromptPayload)
	assert.Equal(t, []int{3}, payload.Options)
	_ = fakePlat
}

func TestContextPromptSkipSendsQueuedPromptUnmodified(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.OfferContextPrompt(context.Background(), 6, "do the task", nil))

	consumed, err := h.ResolveContextReaction(context.Background(), EmojiCross)
	require.NoError(t, err)
	assert.True(t, consumed)

	_, ok := h.Pending.Get(h.Session.ID, message.KindContextPrompt)
	assert.False(t, ok)
}

func TestWorktreeInitialPromptBranchSelection(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.OfferInitialWorktreePrompt(context.Background(), []string{"feature-x", "feature-y"}, "build it", nil))

	var got WorktreeDecision
	consumed, err := h.ResolveWorktreeReaction(context.Background(), numberEmoji[1], func(ctx context.Context, d WorktreeDecision) { got = d })
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, "feature-x", got.BranchName)
}

func TestWorktreeSkipViaReaction(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.OfferInitialWorktreePrompt(context.Background(), []string{"feature-x"}, "build it", nil))

	var got WorktreeDecision
	consumed, err := h.ResolveWorktreeReaction(context.Background(), EmojiCross, func(ctx context.Context, d WorktreeDecision) { got = d })
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.True(t, got.Skip)
}

func TestWorktreeFreeFormBranchReply(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.OfferInitialWorktreePrompt(context.Background(), nil, "build it", nil))

	var got WorktreeDecision
	consumed, err := h.ResolveWorktreeText(context.Background(), "my-custom-branch", func(ctx context.Context, d WorktreeDecision) { got = d })
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, "my-custom-branch", got.BranchName)
}

func TestMessageApprovalSend(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.OfferMessageApproval(context.Background(), "hello world"))

	var sent string
	consumed, err := h.ResolveMessageApprovalReaction(context.Background(), EmojiThumbsUp, func(ctx context.Context, text string) error {
		sent = text
		return nil
	})
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, "hello world", sent)
}

func TestBugReportFile(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	require.NoError(t, h.OfferBugReport(context.Background(), "crash on startup", "stack trace here", "ctx"))

	var filedTitle string
	consumed, err := h.ResolveBugReportReaction(context.Background(), EmojiThumbsUp, func(ctx context.Context, title, body, context string) (string, error) {
		filedTitle = title
		return "ISSUE-42", nil
	})
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, "crash on startup", filedTitle)
}

func TestRouterRoutesToApprovalHandlerFirst(t *testing.T) {
	h, fakePlat, sessions := newTestHandlers(t)
	require.NoError(t, h.HandleApproval(context.Background(), executor.ApprovalRequest{Kind: executor.ApprovalPermission, ToolUseID: "tu1", Summary: "x"}))
	pending, _ := h.Pending.Get(h.Session.ID, message.KindApproval)

	r := NewRouter(sessions, nil, nil)
	r.Register(h)

	consumed, err := r.Route(context.Background(), platform.InboundReaction{PostID: pending.PostID, EmojiName: EmojiThumbsUp, Action: platform.ReactionAdded})
	require.NoError(t, err)
	assert.True(t, consumed)
	_ = fakePlat
}

func TestRouterFallsThroughToSessionControlOnHeaderPost(t *testing.T) {
	h, _, sessions := newTestHandlers(t)
	h.Session.SessionHeaderPostID = "header-post"
	sessions.BindPost("header-post", h.Session)

	var cancelled bool
	r := NewRouter(sessions, nil, nil)
	r.OnSessionCancel = func(ctx context.Context, sess *session.Session) { cancelled = true }
	r.Register(h)

	consumed, err := r.Route(context.Background(), platform.InboundReaction{PostID: "header-post", EmojiName: EmojiX, Action: platform.ReactionAdded})
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.True(t, cancelled)
}

func TestRouterIgnoresUnmatchedReaction(t *testing.T) {
	h, _, sessions := newTestHandlers(t)
	h.Session.SessionHeaderPostID = "header-post"
	sessions.BindPost("header-post", h.Session)

	r := NewRouter(sessions, nil, nil)
	r.Register(h)

	consumed, err := r.Route(context.Background(), platform.InboundReaction{PostID: "header-post", EmojiName: "eyes", Action: platform.ReactionAdded})
	require.NoError(t, err)
	assert.False(t, consumed)
}
