// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"sort"
	"sync"
	"time"
)

// HistoryConfig bounds retention.
type HistoryConfig struct {
	MaxEvents int
	MaxAge    time.Duration
}

// history is an in-memory, size- and age-bounded event log.
type history struct {
	mu        sync.RWMutex
	events    []Event
	maxEvents int
	maxAge    time.Duration
}

func newHistory(cfg HistoryConfig) *history {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 10000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	return &history{maxEvents: cfg.MaxEvents, maxAge: cfg.MaxAge}
}

func (h *history) add(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, evt)
	if len(h.events) > h.maxEvents {
		h.events = h.events[len(h.events)-h.maxEvents:]
	}
}

func (h *history) query(filter Filter) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Event, 0)
	for _, evt := range h.events {
		if !matchesFilter(evt, filter) {
			continue
		}
		result = append(result, evt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result
}

func matchesFilter(evt Event, filter Filter) bool {
	if len(filter.Kinds) > 0 {
		found := false
		for _, k := range filter.Kinds {
			if evt.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.SessionID != "" && evt.SessionID != filter.SessionID {
		return false
	}
	if !filter.Since.IsZero() && evt.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && evt.Timestamp.After(filter.Until) {
		return false
	}
	return true
}

func (h *history) prune() {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := time.Now().Add(-h.maxAge)
	filtered := make([]Event, 0, len(h.events))
	for _, evt := range h.events {
		if evt.Timestamp.After(cutoff) {
			filtered = append(filtered, evt)
		}
	}
	h.events = filtered
}

func (h *history) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}
