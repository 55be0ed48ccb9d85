// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package aicli

import ps "github.com/mitchellh/go-ps"

// processAlive reports whether pid still appears in the OS process
// table. Used to distinguish a child that silently exited (pid gone —
// treat as a crash, eligible for resume) from one that is hung but
// still running (pid present — an invariant violation worth surfacing
// distinctly, per spec.md §7(f)).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := ps.FindProcess(pid)
	if err != nil || proc == nil {
		return false
	}
	return true
}
