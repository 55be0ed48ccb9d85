// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"

	"github.com/hollow-creek/chatbridge/internal/platform"
)

// SystemPoster is the subset of platform.Platform the system executor
// drives.
type SystemPoster interface {
	CreatePost(ctx context.Context, channel, text, threadRoot string) (platform.Post, error)
}

var severityEmoji = map[SystemSeverity]string{
	SeverityInfo:  "ℹ️",
	SeverityWarn:  "⚠️",
	SeverityError: "🛑",
}

// System posts standalone `!system`/error messages with a standard
// emoji prefix, per spec.md §4.5's system executor.
type System struct {
	poster     SystemPoster
	channel    string
	threadRoot string
}

// NewSystem builds a System executor.
func NewSystem(poster SystemPoster, channel, threadRoot string) *System {
	return &System{poster: poster, channel: channel, threadRoot: threadRoot}
}

// Post renders and sends a SystemMessage op as its own post.
func (s *System) Post(ctx context.Context, severity SystemSeverity, text string) error {
	emoji, ok := severityEmoji[severity]
	if !ok {
		emoji = severityEmoji[SeverityInfo]
	}
	_, err := s.poster.CreatePost(ctx, s.channel, emoji+" "+text, s.threadRoot)
	return err
}
