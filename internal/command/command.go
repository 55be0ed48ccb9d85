// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package command recognizes the leading "!"-prefixed commands chat
// users type (spec.md §4.4): session control, directory/worktree
// switches, collaboration, permissions, updates, passthrough,
// plugins, and a dynamic catch-all handed to the AI's own
// slash-command dispatcher.
package command

import (
	"regexp"
	"strings"
)

// Name identifies a recognized command kind.
type Name string

const (
	Stop         Name = "stop"
	Escape       Name = "escape"
	Approve      Name = "approve"
	Help         Name = "help"
	ReleaseNotes Name = "release-notes"
	ChangeDir    Name = "cd"
	Worktree     Name = "worktree"
	Invite       Name = "invite"
	Kick         Name = "kick"
	Permissions  Name = "permissions"
	Update       Name = "update"
	Context      Name = "context"
	Cost         Name = "cost"
	Compact      Name = "compact"
	Plugin       Name = "plugin"
	Kill         Name = "kill"
	Bug          Name = "bug"
	Catchall     Name = "catchall"
)

// Command is one parsed "!"-command with its argument string intact.
// Word is only populated for Catchall: the dynamic slash-command name
// handed to the AI's own dispatcher.
type Command struct {
	Name Name
	Word string
	Arg  string
}

// pattern pairs a regexp matching the whole trimmed input against a
// Name. Order matters: the first match wins, so more specific
// patterns (with arguments) must precede the bare catch-all.
type pattern struct {
	name Name
	re   *regexp.Regexp
}

var patterns = []pattern{
	{Stop, regexp.MustCompile(`^!stop$`)},
	{Escape, regexp.MustCompile(`^!escape$`)},
	{Approve, regexp.MustCompile(`^!approve$`)},
	{Help, regexp.MustCompile(`^!help$`)},
	{ReleaseNotes, regexp.MustCompile(`^!release-notes$`)},
	{ChangeDir, regexp.MustCompile(`^!cd(?:\s+(.*))?$`)},
	{Worktree, regexp.MustCompile(`^!worktree(?:\s+(.*))?$`)},
	{Invite, regexp.MustCompile(`^!invite\s+(.*)$`)},
	{Kick, regexp.MustCompile(`^!kick\s+(.*)$`)},
	{Permissions, regexp.MustCompile(`^!permissions\s+(interactive|auto)$`)},
	{Update, regexp.MustCompile(`^!update(?:\s+(now|defer))?$`)},
	{Context, regexp.MustCompile(`^!context$`)},
	{Cost, regexp.MustCompile(`^!cost$`)},
	{Compact, regexp.MustCompile(`^!compact$`)},
	{Plugin, regexp.MustCompile(`^!plugin(?:\s+(.*))?$`)},
	{Kill, regexp.MustCompile(`^!kill$`)},
	{Bug, regexp.MustCompile(`^!bug(?:\s+(.*))?$`)},
	{Catchall, regexp.MustCompile(`^!(\S+)(?:\s+(.*))?$`)},
}

// Parse matches the leading "!"-command on trimmed user input. ok is
// false when input carries no recognized command.
func Parse(input string) (cmd Command, ok bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "!") {
		return Command{}, false
	}

	for _, p := range patterns {
		matches := p.re.FindStringSubmatch(trimmed)
		if matches == nil {
			continue
		}
		if p.name == Catchall {
			rest := ""
			if len(matches) > 2 {
				rest = strings.TrimSpace(matches[2])
			}
			return Command{Name: Catchall, Word: matches[1], Arg: rest}, true
		}

		arg := ""
		if len(matches) > 1 {
			arg = strings.TrimSpace(matches[len(matches)-1])
		}
		return Command{Name: p.name, Arg: arg}, true
	}
	return Command{}, false
}

// UpgradeToAutoRejected reports whether cmd requests switching
// permissions to auto mode, which spec.md §4.4 says is always
// rejected.
func UpgradeToAutoRejected(cmd Command) bool {
	return cmd.Name == Permissions && cmd.Arg == "auto"
}
