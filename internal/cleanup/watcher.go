// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hollow-creek/chatbridge/internal/watcher"
)

// rootWatchDebounce coalesces a burst of filesystem events (e.g. git
// writing several files while creating a worktree) into one extra scan.
const rootWatchDebounce = 2 * time.Second

// WorktreeWatcher watches the worktree root directory for out-of-band
// changes (a worktree appearing or disappearing between scheduled
// scans, e.g. a human running `git worktree remove` by hand) and
// triggers an extra Scan, debounced, instead of waiting for the next
// tick. Grounded on the teacher's internal/watcher.BinaryWatcher,
// which pairs an fsnotify.Watcher with a Debouncer the same way.
type WorktreeWatcher struct {
	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	debouncer *watcher.Debouncer
	scheduler *Scheduler
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// WatchRoot starts watching the worktree manager's root directory,
// calling scheduler.Scan (debounced) on any create/remove/rename.
func WatchRoot(scheduler *Scheduler, root string) (*WorktreeWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create worktree root watcher: %w", err)
	}
	if err := fsWatcher.Add(root); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch worktree root %q: %w", root, err)
	}

	w := &WorktreeWatcher{
		fsWatcher: fsWatcher,
		debouncer: watcher.NewDebouncer(rootWatchDebounce),
		scheduler: scheduler,
		closeCh:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Close stops watching and releases the fsnotify handle.
func (w *WorktreeWatcher) Close() error {
	w.mu.Lock()
	select {
	case <-w.closeCh:
		w.mu.Unlock()
		return nil
	default:
		close(w.closeCh)
	}
	w.mu.Unlock()

	w.debouncer.Stop()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *WorktreeWatcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.scheduler.Log.Warn("worktree root watch error", "error", err)
		}
	}
}

func (w *WorktreeWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.debouncer.Debounce("worktree-root", func() {
		w.scheduler.Scan(context.Background())
	})
}
