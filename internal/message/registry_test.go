// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/clock"
)

func TestRegistrySetAndGet(t *testing.T) {
	r := NewRegistry(clock.NewFake(time.Now()))
	r.Set(context.Background(), "sess-1", Pending{Kind: KindApproval, PostID: "p1"}, 0, nil)

	got, ok := r.Get("sess-1", KindApproval)
	require.True(t, ok)
	assert.Equal(t, "p1", got.PostID)
}

func TestRegistryFindByPostIDScansAllKinds(t *testing.T) {
	r := NewRegistry(clock.NewFake(time.Now()))
	r.Set(context.Background(), "sess-1", Pending{Kind: KindApproval, PostID: "p1"}, 0, nil)
	r.Set(context.Background(), "sess-1", Pending{Kind: KindQuestionSet, PostID: "p2"}, 0, nil)

	got, ok := r.FindByPostID("sess-1", "p2")
	require.True(t, ok)
	assert.Equal(t, KindQuestionSet, got.Kind)
}

func TestRegistryClearRemovesEntry(t *testing.T) {
	r := NewRegistry(clock.NewFake(time.Now()))
	r.Set(context.Background(), "sess-1", Pending{Kind: KindApproval, PostID: "p1"}, 0, nil)
	r.Clear("sess-1", KindApproval)

	_, ok := r.Get("sess-1", KindApproval)
	assert.False(t, ok)
}

func TestRegistryTimeoutFiresOnTimeoutFunc(t *testing.T) {
	fc := clock.NewFake(time.Now())
	r := NewRegistry(fc)

	var mu sync.Mutex
	fired := false
	var gotSession string

	done := make(chan struct{})
	r.Set(context.Background(), "sess-1", Pending{Kind: KindContextPrompt, PostID: "p3"}, 30*time.Second, func(ctx context.Context, sessionID string, pending Pending) {
		mu.Lock()
		fired = true
		gotSession = sessionID
		mu.Unlock()
		close(done)
	})

	fc.Advance(31 * time.Second)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, fired)
	assert.Equal(t, "sess-1", gotSession)

	_, ok := r.Get("sess-1", KindContextPrompt)
	assert.False(t, ok)
}

func TestRegistryClearStopsTimeoutBeforeItFires(t *testing.T) {
	fc := clock.NewFake(time.Now())
	r := NewRegistry(fc)

	fired := false
	r.Set(context.Background(), "sess-1", Pending{Kind: KindWorktreePrompt, PostID: "p4"}, 30*time.Second, func(ctx context.Context, sessionID string, pending Pending) {
		fired = true
	})
	r.Clear("sess-1", KindWorktreePrompt)

	fc.Advance(60 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired)
}

func TestRegistryAllReturnsEveryKind(t *testing.T) {
	r := NewRegistry(clock.NewFake(time.Now()))
	r.Set(context.Background(), "sess-1", Pending{Kind: KindApproval, PostID: "p1"}, 0, nil)
	r.Set(context.Background(), "sess-1", Pending{Kind: KindMessageApproval, PostID: "p2"}, 0, nil)

	all := r.All("sess-1")
	assert.Len(t, all, 2)
}
