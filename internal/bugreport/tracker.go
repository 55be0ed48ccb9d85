// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bugreport files and stores bug reports captured by the ✅/❌
// prompt flow in internal/interactive (spec.md §3 "PendingBugReport",
// §7 "bug-report reaction").
//
// Grounded on the teacher's internal/crashes.Manager: one JSON record
// per report on disk, a monotonic sortable ID, and an age+count-bounded
// cleanup pass — re-homed from "crash report filed automatically on a
// service crash" to "bug report filed by a user's reaction", with the
// trigger payload (title/body/context) supplied by the caller instead
// of scraped from parsed service logs.
package bugreport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hollow-creek/chatbridge/internal/clock"
)

// Report is one filed bug report, persisted as its own JSON file.
type Report struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Context   string    `json:"context"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tracker files reports to a local directory. Its File method matches
// interactive.BugReportFiledFunc's signature exactly, so a *Tracker
// can be passed directly as the onFile argument to
// Handlers.ResolveBugReportReaction.
type Tracker struct {
	mu       sync.Mutex
	dir      string
	maxAge   time.Duration
	maxCount int
	clock    clock.Clock
}

// NewTracker returns a Tracker backed by dir (created on first File
// call), pruning reports older than maxAge or beyond maxCount after
// every filing — the same defaults shape as the teacher's crash
// manager (there: 7 days / 100 crashes; here: bug reports are rarer
// and worth keeping longer, so the defaults are wider).
func NewTracker(dir string, maxAge time.Duration, maxCount int, clk clock.Clock) *Tracker {
	if maxAge <= 0 {
		maxAge = 90 * 24 * time.Hour
	}
	if maxCount <= 0 {
		maxCount = 500
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{dir: dir, maxAge: maxAge, maxCount: maxCount, clock: clk}
}

// File saves title/body/reportContext as a new Report and returns a
// short reference string identifying it. Matches
// interactive.BugReportFiledFunc's signature.
func (t *Tracker) File(ctx context.Context, title, body, reportContext string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("create bug report dir: %w", err)
	}

	now := t.clock.Now()
	report := Report{
		ID:        generateID(now),
		Title:     title,
		Body:      body,
		Context:   reportContext,
		CreatedAt: now,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal bug report: %w", err)
	}
	path := filepath.Join(t.dir, report.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write bug report: %w", err)
	}

	t.cleanup(now)
	return "BUG-" + report.ID, nil
}

func generateID(now time.Time) string {
	return now.UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// List returns every filed report, newest first.
func (t *Tracker) List() ([]Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listLocked()
}

func (t *Tracker) listLocked() ([]Report, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bug report dir: %w", err)
	}

	var reports []Report
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.dir, entry.Name()))
		if err != nil {
			continue
		}
		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

// Get retrieves one filed report by ID (without the "BUG-" prefix
// File returns to callers).
func (t *Tracker) Get(id string) (Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(t.dir, id+".json"))
	if err != nil {
		return Report{}, fmt.Errorf("read bug report %s: %w", id, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("parse bug report %s: %w", id, err)
	}
	return r, nil
}

// cleanup removes reports older than maxAge, then trims anything
// beyond maxCount, newest first. Called with mu already held.
func (t *Tracker) cleanup(now time.Time) {
	reports, err := t.listLocked()
	if err != nil {
		return
	}

	cutoff := now.Add(-t.maxAge)
	kept := reports[:0]
	for _, r := range reports {
		if r.CreatedAt.Before(cutoff) {
			os.Remove(filepath.Join(t.dir, r.ID+".json"))
			continue
		}
		kept = append(kept, r)
	}

	if len(kept) > t.maxCount {
		for _, r := range kept[t.maxCount:] {
			os.Remove(filepath.Join(t.dir, r.ID+".json"))
		}
	}
}
