// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package aicli wraps the externally-managed AI CLI executable: spawning
// it with the stream-json protocol, writing user turns and tool results
// to its stdin, and parsing its NDJSON stdout into typed events.
//
// Grounded on the teacher's internal/claude package (claudecli.go,
// manager.go's ensureProcess/readLoop/writeStdin), generalized from a
// single long-lived dashboard session to spec.md §4.1's contract: one
// child per chatbridge session, `--session-id <uuid>` + `--resume`.
package aicli

import (
	"encoding/json"
	"fmt"
)

// BlockKind discriminates ContentBlock per Design Notes §9's tagged-sum
// requirement ("duck-typed content blocks" must become a tagged sum).
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockThinking   BlockKind = "thinking"
	BlockControl    BlockKind = "control"
	BlockUnknown    BlockKind = "unknown"
)

// ContentBlock is a tagged union over the AI CLI's content block types.
// Unknown Type values are classified BlockUnknown rather than rejected
// — spec.md §9 requires these be "logged and skipped, not
// crash-worthy". Raw is excluded from JSON decoding and this package
// does not fill it.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Kind classifies the block for switch-based dispatch.
func (b ContentBlock) Kind() BlockKind {
	switch b.Type {
	case "text":
		return BlockText
	case "tool_use":
		return BlockToolUse
	case "tool_result":
		return BlockToolResult
	case "thinking":
		return BlockThinking
	case "plan", "task_list":
		return BlockControl
	default:
		return BlockUnknown
	}
}

// Message is the `message` field of an assistant/user stream event.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// Usage mirrors the Anthropic Messages API usage block.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// EventType discriminates the top-level NDJSON event envelope per
// spec.md §6's minimum event schema.
type EventType string

const (
	EventSystem    EventType = "system"
	EventAssistant EventType = "assistant"
	EventUser      EventType = "user"
	EventResult    EventType = "result"
)

// Event is one parsed line of the AI CLI's stdout.
type Event struct {
	Type          EventType       `json:"type"`
	Subtype       string          `json:"subtype,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	Message       json.RawMessage `json:"message,omitempty"`
	IsError       bool            `json:"is_error,omitempty"`
	TotalCostUSD  float64         `json:"total_cost_usd,omitempty"`
	DurationMS    int64           `json:"duration_ms,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// ParsedMessage decodes Event.Message for assistant/user events.
func (e Event) ParsedMessage() (Message, error) {
	var m Message
	if len(e.Message) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(e.Message, &m); err != nil {
		return m, fmt.Errorf("parse message: %w", err)
	}
	return m, nil
}

// IsTerminalResult reports whether this event ends the current turn.
func (e Event) IsTerminalResult() bool {
	return e.Type == EventResult
}

// StatusFile mirrors the optional auxiliary file the AI CLI may write
// on a tick. Absence is "no data", never an error (spec.md §4.1).
type StatusFile struct {
	Model        string  `json:"model"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}
