// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"context"
	"fmt"

	"github.com/hollow-creek/chatbridge/internal/platform"
)

// AnnouncePostUpdate implements spec.md §4.9's "On next startup,
// justUpdated triggers a post-update notification and a
// rollback-instructions helper, then the flag is cleared." Safe to
// call unconditionally at startup; it's a no-op when justUpdated
// wasn't set.
func AnnouncePostUpdate(ctx context.Context, st *StateStore, plat platform.Platform, channel string) error {
	prev, err := st.Load()
	if err != nil {
		return fmt.Errorf("load update state: %w", err)
	}
	if !prev.JustUpdated {
		return nil
	}

	if plat != nil && channel != "" {
		msg := fmt.Sprintf("Updated %s → %s and restarted.", prev.PreviousVersion, prev.TargetVersion)
		if prev.PreviousVersion != "" {
			msg += fmt.Sprintf("\n\nTo roll back: reinstall %s and restart.", prev.PreviousVersion)
		}
		if _, err := plat.CreatePost(ctx, channel, msg, ""); err != nil {
			return err
		}
	}
	if _, err := st.ClearJustUpdated(); err != nil {
		return fmt.Errorf("clear justUpdated flag: %w", err)
	}
	return nil
}
