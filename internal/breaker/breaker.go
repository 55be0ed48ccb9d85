// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package breaker finds logical break points in streamed markdown so
// the content executor can split an over-length post without cutting
// a grapheme cluster, a fenced code block, or a heading in half.
//
// Grounded on the teacher's internal/logs package (which segments long
// log output for display) for the "scan for the best split point under
// a budget" shape, generalized to spec.md §4.5's four breakpoint
// kinds. Length is measured in grapheme clusters via
// github.com/rivo/uniseg rather than bytes or runes, so a combining
// emoji sequence is never split mid-cluster.
package breaker

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Kind discriminates a recognized breakpoint.
type Kind string

const (
	Paragraph   Kind = "paragraph"
	CodeFenceEnd Kind = "code_block_end"
	Heading     Kind = "heading"
	ToolMarker  Kind = "tool_marker"
)

// Breakpoint is one candidate split position, expressed as a byte
// offset into the source text.
type Breakpoint struct {
	Offset int
	Kind   Kind
}

// toolMarkerPrefixes are the line prefixes the content executor emits
// around tool_use/tool_result blocks; splitting just before one keeps
// a tool call's framing intact in the continuation post.
var toolMarkerPrefixes = []string{"🔧 ", "⚙️ ", "```tool"}

// Length returns the number of grapheme clusters in s — the unit
// spec.md §4.5 measures platform.maxLength and the height threshold
// against, so a flag emoji or combining accent counts once.
func Length(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Breakpoints scans text and returns every recognized breakpoint in
// ascending offset order.
func Breakpoints(text string) []Breakpoint {
	var points []Breakpoint

	lines := splitKeepOffsets(text)
	inFence := false
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln.text)

		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				points = append(points, Breakpoint{Offset: ln.end, Kind: CodeFenceEnd})
			}
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if trimmed == "" {
			points = append(points, Breakpoint{Offset: ln.end, Kind: Paragraph})
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			points = append(points, Breakpoint{Offset: ln.start, Kind: Heading})
			continue
		}
		for _, marker := range toolMarkerPrefixes {
			if strings.HasPrefix(trimmed, marker) {
				points = append(points, Breakpoint{Offset: ln.start, Kind: ToolMarker})
				break
			}
		}
	}

	return points
}

// InFencedCodeBlock reports whether byte offset idx falls inside an
// open ``` fence, per spec.md §4.5's "prefer a break immediately
// before the opening fence" rule.
func InFencedCodeBlock(text string, idx int) bool {
	inFence := false
	for _, ln := range splitKeepOffsets(text) {
		if ln.start > idx {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(ln.text), "```") {
			inFence = !inFence
		}
	}
	return inFence
}

// LastBreakpointUnder returns the last breakpoint whose prefix (in
// grapheme clusters) stays at or under maxGraphemes, or false if none
// qualifies — spec.md §4.5's height-threshold search.
func LastBreakpointUnder(text string, maxGraphemes int) (Breakpoint, bool) {
	var best Breakpoint
	found := false
	for _, bp := range Breakpoints(text) {
		if Length(text[:bp.Offset]) > maxGraphemes {
			break
		}
		best = bp
		found = true
	}
	return best, found
}

// GoodEnoughToFlushEarly reports whether text already contains a
// paragraph or heading breakpoint past minGraphemes, letting the
// content executor flush before hitting the hard height threshold —
// spec.md §4.5's "good enough to flush early" predicate.
func GoodEnoughToFlushEarly(text string, minGraphemes int) bool {
	for _, bp := range Breakpoints(text) {
		if bp.Kind != Paragraph && bp.Kind != Heading {
			continue
		}
		if Length(text[:bp.Offset]) >= minGraphemes {
			return true
		}
	}
	return false
}

// TruncateToGraphemes splits text into (head, tail) at the byte offset
// of the n-th grapheme cluster boundary, for the rare case where no
// recognized breakpoint fits under budget and a flush cannot wait any
// longer. If idx lands inside an open fence, the cut backs up to just
// before the fence's opening line so a partial code block is never
// posted.
func TruncateToGraphemes(text string, n int) (head, tail string) {
	if n <= 0 {
		return "", text
	}
	count := 0
	offset := len(text)
	state := -1
	remaining := text
	pos := 0
	for len(remaining) > 0 {
		var cluster string
		cluster, remaining, _, state = uniseg.FirstGraphemeClusterInString(remaining, state)
		pos += len(cluster)
		count++
		if count >= n {
			offset = pos
			break
		}
	}
	if InFencedCodeBlock(text, offset) {
		if fenceStart := lastFenceOpenBefore(text, offset); fenceStart >= 0 {
			offset = fenceStart
		}
	}
	return text[:offset], text[offset:]
}

// lastFenceOpenBefore returns the start offset of the last ``` fence
// opening line at or before idx, or -1 if none is found.
func lastFenceOpenBefore(text string, idx int) int {
	best := -1
	inFence := false
	for _, ln := range splitKeepOffsets(text) {
		if ln.start > idx {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(ln.text), "```") {
			if !inFence {
				best = ln.start
			}
			inFence = !inFence
		}
	}
	if inFence {
		return best
	}
	return -1
}

type lineSpan struct {
	text       string
	start, end int
}

func splitKeepOffsets(text string) []lineSpan {
	var spans []lineSpan
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			spans = append(spans, lineSpan{text: text[start:i], start: start, end: i + 1})
			start = i + 1
		}
	}
	if start < len(text) {
		spans = append(spans, lineSpan{text: text[start:], start: start, end: len(text)})
	}
	return spans
}
