// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package update

// InWindow reports whether hour (0-23, local time) falls in
// [startHour, endHour), wrapping across midnight when startHour >
// endHour (spec.md §8: "{22,5} at hour 23 → inside; at hour 6 →
// outside").
func InWindow(hour, startHour, endHour int) bool {
	if startHour == endHour {
		return true // a zero-width window is interpreted as always-open
	}
	if startHour < endHour {
		return hour >= startHour && hour < endHour
	}
	return hour >= startHour || hour < endHour
}
