// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"fmt"
)

// rawDocument is an intermediate representation used to detect and
// apply schema migrations before the strongly-typed Document is
// unmarshaled, since old documents may carry keys/fields the current
// Snapshot struct no longer has tags for.
type rawDocument struct {
	Version              int                        `json:"version"`
	Sessions             map[string]json.RawMessage `json:"sessions"`
	StickyPostIDs        map[string]string          `json:"stickyPostIds"`
	PlatformEnabledState map[string]bool            `json:"platformEnabledState"`
}

// migrate applies forward schema migrations in place and reports
// whether anything changed, per spec.md §4.3:
//   - v1 session keys were bare threadId; v2 keys are
//     "platformId:threadId". A v1 document has no reliable way to
//     recover platformId, so migration assumes the single configured
//     default platform (passed in as defaultPlatformID).
//   - legacy field "timeoutPostId" renamed to "lifecyclePostId".
func migrate(raw *rawDocument, defaultPlatformID string) (changed bool, err error) {
	if raw.Version == 0 {
		raw.Version = 1
	}

	if raw.Version < 2 {
		migrated := make(map[string]json.RawMessage, len(raw.Sessions))
		for key, data := range raw.Sessions {
			data, fieldChanged, err := renameTimeoutPostID(data)
			if err != nil {
				return false, fmt.Errorf("migrate session %q: %w", key, err)
			}
			newKey := key
			if !hasPlatformPrefix(key) {
				newKey = defaultPlatformID + ":" + key
				changed = true
			}
			if fieldChanged {
				changed = true
			}
			migrated[newKey] = data
		}
		raw.Sessions = migrated
		raw.Version = 2
		changed = true
	}

	return changed, nil
}

func hasPlatformPrefix(key string) bool {
	for _, r := range key {
		if r == ':' {
			return true
		}
	}
	return false
}

// renameTimeoutPostID copies a legacy "timeoutPostId" field into
// "lifecyclePostId" when the latter is absent.
func renameTimeoutPostID(data json.RawMessage) (json.RawMessage, bool, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		return data, false, err
	}
	legacy, hasLegacy := generic["timeoutPostId"]
	_, hasNew := generic["lifecyclePostId"]
	if !hasLegacy || hasNew {
		return data, false, nil
	}
	generic["lifecyclePostId"] = legacy
	delete(generic, "timeoutPostId")
	out, err := json.Marshal(generic)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}
