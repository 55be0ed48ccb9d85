// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBranchName(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"feature/widget", true},
		{"", false},
		{"@", false},
		{"-bad", false},
		{"/bad", false},
		{"bad..name", false},
		{"bad@{name", false},
		{"bad.lock", false},
		{"bad/", false},
		{"bad.", false},
		{"bad name", false},
		{"bad\tname", false},
		{"bad~name", false},
		{"bad^name", false},
		{"bad:name", false},
		{"bad?name", false},
		{"bad*name", false},
		{"bad[name", false},
		{"bad\\name", false},
	}
	for _, c := range cases {
		err := ValidateBranchName(c.name)
		if c.valid {
			assert.NoError(t, err, "name %q", c.name)
		} else {
			assert.Error(t, err, "name %q", c.name)
		}
	}
}
