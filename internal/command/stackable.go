// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"regexp"
	"strings"
)

// StackableCommand is one prefix command peeled off the front of a
// first message.
type StackableCommand struct {
	Name Name
	Arg  string
}

var stackablePatterns = []pattern{
	{ChangeDir, regexp.MustCompile(`^!cd\s+(\S+)\s*`)},
	{Permissions, regexp.MustCompile(`^!permissions\s+interactive\s*`)},
	{Worktree, regexp.MustCompile(`^!worktree\s+(\S+)\s*`)},
}

// PeelStackable repeatedly strips recognized "!cd X", "!permissions
// interactive", and "!worktree X" prefixes from the front of a first
// message, per spec.md §4.4, returning the stacked commands in
// encounter order and the remaining text for onward processing.
func PeelStackable(input string) ([]StackableCommand, string) {
	remaining := strings.TrimLeft(input, " \t")
	var stacked []StackableCommand

	for {
		matched := false
		for _, p := range stackablePatterns {
			loc := p.re.FindStringSubmatchIndex(remaining)
			if loc == nil || loc[0] != 0 {
				continue
			}
			matches := p.re.FindStringSubmatch(remaining)
			arg := ""
			if len(matches) > 1 {
				arg = matches[1]
			}
			stacked = append(stacked, StackableCommand{Name: p.name, Arg: arg})
			remaining = strings.TrimLeft(remaining[loc[1]:], " \t")
			matched = true
			break
		}
		if !matched {
			break
		}
	}

	return stacked, remaining
}
