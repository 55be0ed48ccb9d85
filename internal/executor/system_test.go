// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPostPrefixesSeverityEmoji(t *testing.T) {
	p := newFakePoster(fakeLimits())
	s := NewSystem(p, "chan-1", "")

	require.NoError(t, s.Post(context.Background(), SeverityError, "the child process crashed"))
	require.Equal(t, 1, p.createCalls)

	var posted string
	for _, v := range p.posts {
		posted = v
	}
	assert.Contains(t, posted, "🛑")
	assert.Contains(t, posted, "the child process crashed")
}
