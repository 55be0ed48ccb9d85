// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package aicli

import "strings"

// permanentFailureSubstrings are matched case-insensitively against
// stderr lines to detect a child that will never succeed on retry
// (spec.md §4.1 "Permanent failure detection").
var permanentFailureSubstrings = []string{
	"authentication required",
	"invalid api key",
	"version incompatible",
}

// classifyStderrLine reports whether a stderr line indicates a
// permanent failure, and if so, which documented substring matched.
func classifyStderrLine(line string) (permanent bool, reason string) {
	lower := strings.ToLower(line)
	for _, sub := range permanentFailureSubstrings {
		if strings.Contains(lower, sub) {
			return true, sub
		}
	}
	return false, ""
}
