// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logging wraps log/slog with the component-tagging convention
// the teacher codebase uses ad hoc via log.Printf("claude [%s]: ...").
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a text-handler slog.Logger writing to w (os.Stderr if nil).
func New(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Component returns a logger tagged with a component name, mirroring
// the teacher's "claude [%s]: " / "worktree: " prefixes as a structured field.
func Component(base *slog.Logger, name string) *slog.Logger {
	return base.With("component", name)
}
