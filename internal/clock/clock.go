// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so session timers, the cleanup
// scheduler, and the auto-update coordinator can be driven
// deterministically in tests instead of patching the global time
// package.
package clock

import "time"

// Timer is the subset of *time.Timer chatbridge depends on.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// Ticker is the subset of *time.Ticker chatbridge depends on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock is the seam between chatbridge and wall-clock time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
	Sleep(d time.Duration)
}

// Real is the production Clock backed by the time package.
type Real struct{}

// New returns the real, wall-clock-backed Clock.
func New() Clock { return Real{} }

func (Real) Now() time.Time                         { return time.Now() }
func (Real) After(d time.Duration) <-chan time.Time  { return time.After(d) }
func (Real) Sleep(d time.Duration)                   { time.Sleep(d) }
func (Real) NewTimer(d time.Duration) Timer          { return &realTimer{t: time.NewTimer(d)} }
func (Real) NewTicker(d time.Duration) Ticker        { return &realTicker{t: time.NewTicker(d)} }

type realTimer struct{ t *time.Timer }

func (r *realTimer) C() <-chan time.Time      { return r.t.C }
func (r *realTimer) Stop() bool               { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
