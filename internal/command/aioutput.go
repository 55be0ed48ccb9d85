// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"regexp"
	"strings"
)

// aiOutputPattern matches one allow-listed command on its own line
// within the AI's own output: "cd", "worktree list", "bug".
var aiOutputPattern = regexp.MustCompile(`(?m)^\s*!(cd\s+\S+|worktree\s+list|bug)\s*$`)

// ParseAIOutput scans text (the AI's streamed or final output) for
// allow-listed command lines, per spec.md §4.4's "AI-output parser
// accepts only an allow-listed subset, matched on their own line".
// Unlike Parse, this never honors the dynamic catch-all — the AI
// cannot issue arbitrary chatbridge commands to itself.
func ParseAIOutput(text string) []Command {
	var out []Command
	for _, m := range aiOutputPattern.FindAllStringSubmatch(text, -1) {
		line := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(line, "cd "):
			out = append(out, Command{Name: ChangeDir, Arg: strings.TrimSpace(strings.TrimPrefix(line, "cd "))})
		case line == "worktree list":
			out = append(out, Command{Name: Worktree, Arg: "list"})
		case line == "bug":
			out = append(out, Command{Name: Bug})
		}
	}
	return out
}
