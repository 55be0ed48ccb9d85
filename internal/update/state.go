// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package update implements spec.md §4.9: a periodic version check
// against a package registry, five timing modes deciding *when* to
// restart, and the persisted handoff record a supervising launcher
// uses across the restart.
//
// Grounded on the teacher's internal/watcher.BinaryWatcher (detect a
// changed binary, debounce, then act) generalized from "a rebuilt
// binary on disk" to "a newer published version over HTTP", and on
// internal/store's tmp+rename persistence idiom for State.
package update

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the persisted handoff record (spec.md §6 "Update state
// file"), written before the process exits to trigger a restart and
// read back on the next startup.
type State struct {
	PreviousVersion string     `json:"previousVersion,omitempty"`
	TargetVersion   string     `json:"targetVersion,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	JustUpdated     bool       `json:"justUpdated,omitempty"`
	LastCheckAt     *time.Time `json:"lastCheckAt,omitempty"`
	DeferredUntil   *time.Time `json:"deferredUntil,omitempty"`
}

// StateStore persists State to a JSON file via tmp+rename, mirroring
// internal/store.Store's atomicity guarantee for its own file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore returns a StateStore backed by path (typically
// ~/.<app>/update-state.json per spec.md §6).
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the persisted state, returning a zero State if the file
// doesn't exist yet.
func (s *StateStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read update state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse update state: %w", err)
	}
	return st, nil
}

// Save writes st via tmp+rename.
func (s *StateStore) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal update state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create update state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp update state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename update state: %w", err)
	}
	return nil
}

// ClearJustUpdated loads state, clears JustUpdated on disk if it was
// set, and returns the state as it was BEFORE clearing (so the caller
// can still tell whether a post-update notification is due). Called
// once at startup after the post-update notification has been
// delivered (spec.md §4.9 "then the flag is cleared").
func (s *StateStore) ClearJustUpdated() (State, error) {
	st, err := s.Load()
	if err != nil {
		return State{}, err
	}
	wasJustUpdated := st.JustUpdated
	if !wasJustUpdated {
		return st, nil
	}
	cleared := st
	cleared.JustUpdated = false
	if err := s.Save(cleared); err != nil {
		return st, err
	}
	return st, nil
}
