// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when operating on a closed bus.
var ErrClosed = errors.New("eventbus: bus is closed")

// ErrSubscriptionNotFound is returned when unsubscribing an unknown ID.
var ErrSubscriptionNotFound = errors.New("eventbus: subscription not found")

// MemoryBus is the only Bus implementation chatbridge ships: an
// in-process, subscribe-by-kind-set bus with sync and async
// subscribers and panic-recovering handlers.
type MemoryBus struct {
	mu            sync.RWMutex
	subscriptions map[SubscriptionID]*subscription
	history       *history
	closed        atomic.Bool
	wg            sync.WaitGroup
	nextID        uint64
	stopPruner    chan struct{}
	log           *slog.Logger
}

type subscription struct {
	id      SubscriptionID
	kinds   map[Kind]struct{}
	handler Handler
	async   bool
	ch      chan Event
	stopCh  chan struct{}
}

// NewMemoryBus creates a bus with the given history retention and logger.
func NewMemoryBus(cfg HistoryConfig, log *slog.Logger) *MemoryBus {
	if log == nil {
		log = slog.Default()
	}
	bus := &MemoryBus{
		subscriptions: make(map[SubscriptionID]*subscription),
		history:       newHistory(cfg),
		stopPruner:    make(chan struct{}),
		log:           log,
	}

	pruneInterval := cfg.MaxAge / 10
	if pruneInterval < time.Minute {
		pruneInterval = time.Minute
	}
	if pruneInterval > time.Hour {
		pruneInterval = time.Hour
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-bus.stopPruner:
				return
			case <-ticker.C:
				bus.history.prune()
			}
		}
	}()

	return bus
}

func kindSet(kinds []Kind) map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		m[k] = struct{}{}
	}
	return m
}

func (s *subscription) matches(k Kind) bool {
	if len(s.kinds) == 0 {
		return true // empty set subscribes to everything
	}
	_, ok := s.kinds[k]
	return ok
}

// Publish assigns an ID and timestamp if unset, records the event in
// history, and fans it out to matching subscribers.
func (bus *MemoryBus) Publish(ctx context.Context, evt Event) error {
	if bus.closed.Load() {
		return ErrClosed
	}
	if evt.ID == "" {
		evt.ID = bus.generateID()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	bus.history.add(evt)

	bus.mu.RLock()
	subs := make([]*subscription, 0, len(bus.subscriptions))
	for _, sub := range bus.subscriptions {
		subs = append(subs, sub)
	}
	bus.mu.RUnlock()

	for _, sub := range subs {
		if !sub.matches(evt.Kind) {
			continue
		}
		if sub.async {
			select {
			case sub.ch <- evt:
			default:
				bus.log.Warn("dropped event, async subscriber buffer full", "kind", evt.Kind)
			}
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.log.Error("event handler panic", "kind", evt.Kind, "recover", r)
				}
			}()
			if err := sub.handler(ctx, evt); err != nil {
				bus.log.Warn("event handler error", "kind", evt.Kind, "error", err)
			}
		}()
	}

	return nil
}

// Subscribe registers a synchronous handler for the given kinds (all
// kinds if empty).
func (bus *MemoryBus) Subscribe(kinds []Kind, handler Handler) (SubscriptionID, error) {
	if bus.closed.Load() {
		return "", ErrClosed
	}
	id := SubscriptionID(bus.generateID())
	sub := &subscription{id: id, kinds: kindSet(kinds), handler: handler}

	bus.mu.Lock()
	bus.subscriptions[id] = sub
	bus.mu.Unlock()
	return id, nil
}

// SubscribeAsync registers a buffered, goroutine-backed handler.
func (bus *MemoryBus) SubscribeAsync(kinds []Kind, handler Handler, bufferSize int) (SubscriptionID, error) {
	if bus.closed.Load() {
		return "", ErrClosed
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}
	id := SubscriptionID(bus.generateID())
	ch := make(chan Event, bufferSize)
	stopCh := make(chan struct{})
	sub := &subscription{id: id, kinds: kindSet(kinds), handler: handler, async: true, ch: ch, stopCh: stopCh}

	bus.mu.Lock()
	bus.subscriptions[id] = sub
	bus.mu.Unlock()

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		for {
			select {
			case <-stopCh:
				return
			case evt := <-ch:
				func() {
					defer func() {
						if r := recover(); r != nil {
							bus.log.Error("async event handler panic", "kind", evt.Kind, "recover", r)
						}
					}()
					if err := handler(context.Background(), evt); err != nil {
						bus.log.Warn("async event handler error", "kind", evt.Kind, "error", err)
					}
				}()
			}
		}
	}()

	return id, nil
}

// Unsubscribe removes a subscription, stopping its goroutine if async.
func (bus *MemoryBus) Unsubscribe(id SubscriptionID) error {
	bus.mu.Lock()
	sub, ok := bus.subscriptions[id]
	if !ok {
		bus.mu.Unlock()
		return ErrSubscriptionNotFound
	}
	delete(bus.subscriptions, id)
	bus.mu.Unlock()

	if sub.async && sub.stopCh != nil {
		close(sub.stopCh)
	}
	return nil
}

// History returns past events matching filter.
func (bus *MemoryBus) History(filter Filter) ([]Event, error) {
	return bus.history.query(filter), nil
}

// Close stops the pruner and every async subscriber, then waits.
func (bus *MemoryBus) Close() error {
	if bus.closed.Swap(true) {
		return nil
	}
	close(bus.stopPruner)

	bus.mu.Lock()
	for _, sub := range bus.subscriptions {
		if sub.async && sub.stopCh != nil {
			close(sub.stopCh)
		}
	}
	bus.subscriptions = make(map[SubscriptionID]*subscription)
	bus.mu.Unlock()

	bus.wg.Wait()
	bus.history.close()
	return nil
}

func (bus *MemoryBus) generateID() string {
	n := atomic.AddUint64(&bus.nextID, 1)
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b) + "-" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
