// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config defines the contract the chatbridge core consumes.
// Parsing CLI flags and help text is out of scope for the core (spec.md
// §1); this package only owns the shape of a parsed configuration and a
// minimal YAML loader for the documented ~/.<app>/config.yaml location.
package config

import "time"

// Config is the root configuration the daemon is constructed with.
type Config struct {
	Platform   PlatformConfig   `yaml:"platform"`
	Session    SessionConfig    `yaml:"session"`
	Worktree   WorktreeConfig   `yaml:"worktree"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
	Update     UpdateConfig     `yaml:"update"`
	Server     ServerConfig     `yaml:"server"`
	Debug      bool             `yaml:"debug"`
}

// PlatformConfig carries the external adapter's connection contract.
// The adapter itself is out of scope (spec.md Non-goals); chatbridge
// only needs to know which platform dialect to format for and who may
// use it.
type PlatformConfig struct {
	Kind          string   `yaml:"kind"` // "mattermost" | "slack"
	URL           string   `yaml:"url"`
	Token         string   `yaml:"token"`
	Channel       string   `yaml:"channel"`
	BotName       string   `yaml:"bot_name"`
	AllowedUsers  []string `yaml:"allowed_users"`
	SkipPermissions bool   `yaml:"skip_permissions"`
}

// SessionConfig controls per-session timing and defaults.
type SessionConfig struct {
	IdleTimeout            time.Duration `yaml:"idle_timeout"`
	IdleWarning            time.Duration `yaml:"idle_warning"`
	InteractivePermissions bool          `yaml:"interactive_permissions"`
	ApprovalTimeout        time.Duration `yaml:"approval_timeout"` // 0 = no timeout
	ContextPromptTimeout   time.Duration `yaml:"context_prompt_timeout"`
	MaxResumeFailures      int           `yaml:"max_resume_failures"`
}

// WorktreeConfig controls the §4.7 worktree manager.
type WorktreeConfig struct {
	Mode string `yaml:"mode"` // "always" | "never" | "prompt"
	Root string `yaml:"root"` // defaults to ~/.<app>/worktrees
}

// CleanupConfig controls the §4.8 background scheduler.
type CleanupConfig struct {
	Interval            time.Duration `yaml:"interval"`
	WorktreeMaxAge      time.Duration `yaml:"worktree_max_age"`
	LogRetention        time.Duration `yaml:"log_retention"`
	LogRetentionEnabled bool          `yaml:"log_retention_enabled"`
	ThreadLogDir        string        `yaml:"thread_log_dir"` // defaults to ~/.chatbridge/logs
	StoreRetention      time.Duration `yaml:"store_retention"`
	// ScheduleExpr, when set, overrides Interval with a cron expression
	// (evaluated via github.com/adhocore/gronx) for scan timing instead
	// of a fixed tick — e.g. "0 * * * *" for on-the-hour scans.
	ScheduleExpr string `yaml:"schedule_expr"`
}

// UpdateConfig controls the §4.9 auto-update coordinator.
type UpdateConfig struct {
	Enabled             bool          `yaml:"enabled"`
	CheckInterval        time.Duration `yaml:"check_interval"`
	RegistryURL          string        `yaml:"registry_url"`
	Mode                 string        `yaml:"mode"` // "immediate"|"idle"|"quiet"|"scheduled"|"ask"
	IdleTimeoutMinutes   int           `yaml:"idle_timeout_minutes"`
	QuietTimeoutMinutes  int           `yaml:"quiet_timeout_minutes"`
	ScheduleStartHour    int           `yaml:"schedule_start_hour"`
	ScheduleEndHour      int           `yaml:"schedule_end_hour"`
	AskTimeoutMinutes    int           `yaml:"ask_timeout_minutes"`
	InstallCommand       string        `yaml:"install_command"`
}

// ServerConfig controls the optional health/status HTTP endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"` // "" disables the server
}

// Default returns a Config with every documented default applied.
func Default() Config {
	return Config{
		Platform: PlatformConfig{Kind: "mattermost"},
		Session: SessionConfig{
			IdleTimeout:          2 * time.Hour,
			IdleWarning:          10 * time.Minute,
			ContextPromptTimeout: 30 * time.Second,
			MaxResumeFailures:    3,
		},
		Worktree: WorktreeConfig{Mode: "prompt"},
		Cleanup: CleanupConfig{
			Interval:            time.Hour,
			WorktreeMaxAge:      24 * time.Hour,
			LogRetention:        30 * 24 * time.Hour,
			LogRetentionEnabled: true,
			ThreadLogDir:        "~/.chatbridge/logs",
			StoreRetention:      14 * 24 * time.Hour,
		},
		Update: UpdateConfig{
			CheckInterval:       time.Hour,
			Mode:                "idle",
			IdleTimeoutMinutes:  5,
			QuietTimeoutMinutes: 10,
			AskTimeoutMinutes:   30,
		},
	}
}
