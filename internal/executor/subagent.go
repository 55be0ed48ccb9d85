// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"log/slog"
)

// Subagent maps each delegated task's tool_use_id to its own post and
// a nested Content executor accumulating that subagent's stream,
// per spec.md §4.5's subagent executor.
type Subagent struct {
	poster     ContentPoster
	channel    string
	threadRoot string
	log        *slog.Logger

	nested map[string]*Content
}

// NewSubagent builds a Subagent executor.
func NewSubagent(poster ContentPoster, channel, threadRoot string, log *slog.Logger) *Subagent {
	return &Subagent{poster: poster, channel: channel, threadRoot: threadRoot, log: log, nested: map[string]*Content{}}
}

// Start registers a new subagent task and gives it its own Content
// executor, posting an initial marker so the thread shows the
// delegation happened even before the subagent emits its first token.
func (s *Subagent) Start(ctx context.Context, toolUseID, summary string) error {
	nested, ok := s.nested[toolUseID]
	if !ok {
		nested = NewContent(s.poster, s.channel, s.threadRoot, s.log)
		s.nested[toolUseID] = nested
	}
	nested.Append(summary)
	return nested.Flush(ctx)
}

// Append routes text into the nested Content executor for toolUseID,
// creating one on first use (e.g. a tool_result arriving before a Task
// tool_use was observed, which the protocol permits).
func (s *Subagent) Append(toolUseID, text string) {
	nested, ok := s.nested[toolUseID]
	if !ok {
		nested = NewContent(s.poster, s.channel, s.threadRoot, s.log)
		s.nested[toolUseID] = nested
	}
	nested.Append(text)
}

// Flush flushes the nested executor for one subagent task.
func (s *Subagent) Flush(ctx context.Context, toolUseID string) error {
	nested, ok := s.nested[toolUseID]
	if !ok {
		return nil
	}
	return nested.Flush(ctx)
}

// FlushAll flushes every active subagent's nested executor, e.g. at
// turn end.
func (s *Subagent) FlushAll(ctx context.Context) error {
	for id, nested := range s.nested {
		if err := nested.Flush(ctx); err != nil {
			s.log.Warn("subagent flush failed", "toolUseId", id, "error", err)
		}
	}
	return nil
}

// Done releases the nested executor for a completed subagent task.
func (s *Subagent) Done(toolUseID string) {
	delete(s.nested, toolUseID)
}
