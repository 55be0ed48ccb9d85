// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(HistoryConfig{}, nil)
	defer bus.Close()

	received := make(chan Event, 1)
	_, err := bus.Subscribe([]Kind{KindSessionCreated}, func(ctx context.Context, evt Event) error {
		received <- evt
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindSessionCreated, SessionID: "p:t"}))

	select {
	case evt := <-received:
		assert.Equal(t, KindSessionCreated, evt.Kind)
		assert.Equal(t, "p:t", evt.SessionID)
	case <-time.After(time.Second):
		t.Fatal("handler never called")
	}
}

func TestMemoryBusFiltersByKind(t *testing.T) {
	bus := NewMemoryBus(HistoryConfig{}, nil)
	defer bus.Close()

	called := false
	_, err := bus.Subscribe([]Kind{KindSessionRemoved}, func(ctx context.Context, evt Event) error {
		called = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindSessionCreated}))
	assert.False(t, called)
}

func TestMemoryBusHistory(t *testing.T) {
	bus := NewMemoryBus(HistoryConfig{}, nil)
	defer bus.Close()

	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindSessionCreated, SessionID: "a"}))
	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindSessionRemoved, SessionID: "a"}))

	evts, err := bus.History(Filter{SessionID: "a"})
	require.NoError(t, err)
	assert.Len(t, evts, 2)

	evts, err = bus.History(Filter{Kinds: []Kind{KindSessionRemoved}})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, KindSessionRemoved, evts[0].Kind)
}

func TestMemoryBusUnsubscribeStopsAsync(t *testing.T) {
	bus := NewMemoryBus(HistoryConfig{}, nil)
	defer bus.Close()

	id, err := bus.SubscribeAsync(nil, func(ctx context.Context, evt Event) error { return nil }, 1)
	require.NoError(t, err)
	require.NoError(t, bus.Unsubscribe(id))
	assert.ErrorIs(t, bus.Unsubscribe(id), ErrSubscriptionNotFound)
}

func TestMemoryBusPublishAfterCloseErrors(t *testing.T) {
	bus := NewMemoryBus(HistoryConfig{}, nil)
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), Event{Kind: KindSessionCreated}), ErrClosed)
}
