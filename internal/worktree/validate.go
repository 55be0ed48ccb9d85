// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"fmt"
	"path/filepath"
	"strings"
)

// invalidBranchChars mirrors the subset of `git check-ref-format`
// rules spec.md §4.7 calls out explicitly.
const invalidBranchChars = "~^:?*[\\"

// ValidateBranchName applies a git check-ref-format-equivalent rule:
// no leading '/' or '-', no "..", no "@{", no control chars, none of
// ~^:?*[\, not exactly "@", and not ending in ".lock".
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name is required")
	}
	if name == "@" {
		return fmt.Errorf("branch name %q is reserved", name)
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "-") {
		return fmt.Errorf("branch name %q must not start with '/' or '-'", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("branch name %q must not contain '..'", name)
	}
	if strings.Contains(name, "@{") {
		return fmt.Errorf("branch name %q must not contain '@{'", name)
	}
	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("branch name %q must not end in '.lock'", name)
	}
	if strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("branch name %q must not end with '/' or '.'", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("branch name %q must not contain control characters", name)
		}
	}
	if strings.ContainsAny(name, invalidBranchChars) {
		return fmt.Errorf("branch name %q must not contain any of %q", name, invalidBranchChars)
	}
	if strings.Contains(name, " ") {
		return fmt.Errorf("branch name %q must not contain spaces", name)
	}
	return nil
}

// sanitizeBranchForPath converts a branch name into a filesystem-safe
// path component, per spec.md §4.7's "<sanitized-branch>" naming rule.
func sanitizeBranchForPath(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

// isValidWorktreePath reports whether path lives under root, the
// central worktrees directory. Used to refuse destructive operations
// (remove, force-prune) on paths chatbridge does not own, per spec.md
// §4.7.
func isValidWorktreePath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return true
}
