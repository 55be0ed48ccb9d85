// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"context"
	"os"
	"os/exec"
)

// runInstallCommand runs the configured install command through the
// shell, the same way spec.md §6's "CLI surface" expects operators to
// hand chatbridge a shell one-liner (e.g. `go install ...@latest`).
// A blank command is a no-op: some deployments update out-of-band
// (container image swap) and only need the restart-exit signal.
func runInstallCommand(ctx context.Context, command string) error {
	if command == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// exitProcess terminates the process, letting the supervising
// launcher observe the restart-sentinel exit code (spec.md §4.9).
func exitProcess(code int) {
	os.Exit(code)
}
