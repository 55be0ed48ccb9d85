// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sticky

import (
	"context"
	"time"

	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/watcher"
)

const refreshDebounce = 2 * time.Second

// refreshKinds are the events that should trigger a sticky-post
// refresh: session lifecycle changes and the periodic background
// sweeps that can change what a refresh would show.
var refreshKinds = []eventbus.Kind{
	eventbus.KindSessionCreated,
	eventbus.KindSessionUpdated,
	eventbus.KindSessionRemoved,
	eventbus.KindSessionLifecycle,
	eventbus.KindCleanupRan,
	eventbus.KindUpdateAvailable,
}

// Watch subscribes r to bus and refreshes the sticky post, debounced,
// whenever a relevant event fires. Several events in quick succession
// (e.g. a cleanup sweep removing three worktrees) collapse into one
// refresh. Grounded on internal/cleanup's WorktreeWatcher, which pairs
// the same internal/watcher.Debouncer with a filesystem event source
// instead of an event-bus one.
func Watch(bus eventbus.Bus, r *Renderer) (eventbus.SubscriptionID, error) {
	debouncer := watcher.NewDebouncer(refreshDebounce)
	return bus.SubscribeAsync(refreshKinds, func(ctx context.Context, evt eventbus.Event) error {
		debouncer.Debounce("sticky-refresh", func() {
			if err := r.Refresh(context.Background()); err != nil {
				r.Log.Warn("sticky refresh failed", "error", err)
			}
		})
		return nil
	}, 16)
}
