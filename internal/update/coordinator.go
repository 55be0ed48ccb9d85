// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package update

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
)

// DefaultRestartExitCode is the "restart-needed" sentinel spec.md §4.9
// names conventionally as 42.
const DefaultRestartExitCode = 42

// Mode selects when a detected update triggers a restart.
type Mode string

const (
	ModeImmediate Mode = "immediate"
	ModeIdle      Mode = "idle"
	ModeQuiet     Mode = "quiet"
	ModeScheduled Mode = "scheduled"
	ModeAsk       Mode = "ask"
)

// Coordinator implements spec.md §4.9's periodic check and mode-driven
// restart timing. Grounded on the teacher's internal/watcher.BinaryWatcher's
// debounced-then-act shape, generalized from "a changed binary on
// disk" to "a newer published version."
type Coordinator struct {
	Checker  *Checker
	State    *StateStore
	Sessions *session.Registry
	Platform platform.Platform
	Channel  string
	Clock    clock.Clock
	Bus      eventbus.Bus
	Log      *slog.Logger

	Mode              Mode
	CheckInterval     time.Duration
	IdleTimeout       time.Duration
	QuietTimeout      time.Duration
	AskTimeout        time.Duration
	ScheduleStartHour int
	ScheduleEndHour   int
	InstallCommand    string
	RestartExitCode   int

	// RunInstall executes InstallCommand; overridable in tests.
	RunInstall func(ctx context.Context, command string) error
	// Exit terminates the process with the restart sentinel;
	// overridable in tests (defaults to os.Exit).
	Exit func(code int)

	mu          sync.Mutex
	askPostID   string
	askResult   CheckResult
	pollTimeout time.Duration
	stop        chan struct{}
}

// New builds a Coordinator with the documented defaults.
func New(checker *Checker, state *StateStore, sessions *session.Registry, plat platform.Platform, channel string, bus eventbus.Bus, clk clock.Clock, log *slog.Logger) *Coordinator {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		Checker:         checker,
		State:           state,
		Sessions:        sessions,
		Platform:        plat,
		Channel:         channel,
		Clock:           clk,
		Bus:             bus,
		Log:             log,
		Mode:            ModeIdle,
		CheckInterval:   time.Hour,
		IdleTimeout:     5 * time.Minute,
		QuietTimeout:    10 * time.Minute,
		AskTimeout:      30 * time.Minute,
		RestartExitCode: DefaultRestartExitCode,
		pollTimeout:     30 * time.Second,
		stop:            make(chan struct{}),
	}
}

// Run ticks every CheckInterval, checking for an update and, once one
// is found, blocking in handleUpdateAvailable until the Mode's restart
// condition is met.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := c.Clock.NewTicker(c.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C():
			c.checkAndHandle(ctx)
		}
	}
}

// Stop ends a running Run loop.
func (c *Coordinator) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *Coordinator) checkAndHandle(ctx context.Context) {
	result, err := c.Checker.Check(ctx)
	if err != nil {
		c.Log.Warn("update check failed", "error", err)
		return
	}
	now := c.Clock.Now()
	st, err := c.State.Load()
	if err == nil {
		st.LastCheckAt = &now
		if err := c.State.Save(st); err != nil {
			c.Log.Warn("failed to persist update check timestamp", "error", err)
		}
	}
	if !result.UpdateNeeded {
		return
	}
	if err == nil && st.DeferredUntil != nil && now.Before(*st.DeferredUntil) {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindUpdateAvailable, Payload: map[string]any{
			"currentVersion": result.CurrentVersion, "latestVersion": result.LatestVersion,
		}})
	}
	c.handleUpdateAvailable(ctx, result)
}

// handleUpdateAvailable dispatches on Mode, blocking until the
// restart trigger fires, then installs and exits.
func (c *Coordinator) handleUpdateAvailable(ctx context.Context, result CheckResult) {
	switch c.Mode {
	case ModeImmediate:
		c.trigger(ctx, result)
	case ModeIdle:
		c.waitThenTrigger(ctx, result, c.sessionsIdleFor)
	case ModeQuiet:
		c.waitThenTrigger(ctx, result, c.quietFor)
	case ModeScheduled:
		c.waitThenTrigger(ctx, result, c.inScheduleWindow)
	case ModeAsk:
		c.askThenTrigger(ctx, result)
	default:
		c.waitThenTrigger(ctx, result, c.sessionsIdleFor)
	}
}

// waitThenTrigger polls ready at pollTimeout intervals until it
// returns true, then triggers the restart.
func (c *Coordinator) waitThenTrigger(ctx context.Context, result CheckResult, ready func() bool) {
	for {
		if ready() {
			c.trigger(ctx, result)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-c.Clock.After(c.pollTimeout):
		}
	}
}

func (c *Coordinator) sessionsIdleFor() bool {
	if c.Sessions == nil {
		return true
	}
	active := c.Sessions.All()
	if len(active) == 0 {
		return true
	}
	now := c.Clock.Now()
	for _, sess := range active {
		if now.Sub(sess.LastActivityAt()) < c.IdleTimeout {
			return false
		}
	}
	return true
}

func (c *Coordinator) quietFor() bool {
	if c.Sessions == nil {
		return true
	}
	now := c.Clock.Now()
	for _, sess := range c.Sessions.All() {
		if now.Sub(sess.LastActivityAt()) < c.QuietTimeout {
			return false
		}
	}
	return true
}

func (c *Coordinator) inScheduleWindow() bool {
	return InWindow(c.Clock.Now().Hour(), c.ScheduleStartHour, c.ScheduleEndHour)
}

// askThenTrigger posts a confirm/defer prompt and waits for either a
// reaction (delivered via ResolveAskReaction) or AskTimeout to elapse.
func (c *Coordinator) askThenTrigger(ctx context.Context, result CheckResult) {
	if c.Platform == nil {
		c.trigger(ctx, result)
		return
	}
	prompt := fmt.Sprintf("Update available: %s → %s. Restart now?\n\n+1 restart  -1 defer", result.CurrentVersion, result.LatestVersion)
	post, err := c.Platform.CreateInteractivePost(ctx, c.Channel, prompt, []string{"+1", "-1"}, "")
	if err != nil {
		c.Log.Warn("failed to post update-ask prompt, restarting anyway", "error", err)
		c.trigger(ctx, result)
		return
	}

	c.mu.Lock()
	c.askPostID = post.ID
	c.askResult = result
	c.mu.Unlock()

	deadline := c.Clock.NewTimer(c.AskTimeout)
	defer deadline.Stop()
	select {
	case <-ctx.Done():
		return
	case <-c.stop:
		return
	case <-deadline.C():
		c.mu.Lock()
		stillPending := c.askPostID == post.ID
		c.askPostID = ""
		c.mu.Unlock()
		if stillPending {
			c.trigger(ctx, result)
		}
	}
}

// ResolveAskReaction resolves a pending "ask" prompt reaction: +1
// triggers immediately, -1 sets deferredUntil and cancels the pending
// prompt. Returns false if postID doesn't match the pending ask.
func (c *Coordinator) ResolveAskReaction(ctx context.Context, postID, emoji string) (bool, error) {
	c.mu.Lock()
	if c.askPostID != postID {
		c.mu.Unlock()
		return false, nil
	}
	result := c.askResult
	c.askPostID = ""
	c.mu.Unlock()

	switch emoji {
	case "+1":
		c.trigger(ctx, result)
		return true, nil
	case "-1":
		st, err := c.State.Load()
		if err != nil {
			return true, err
		}
		deferred := c.Clock.Now().Add(time.Hour)
		st.DeferredUntil = &deferred
		return true, c.State.Save(st)
	default:
		c.mu.Lock()
		c.askPostID = postID
		c.askResult = result
		c.mu.Unlock()
		return false, nil
	}
}

// trigger announces, runs the install command, persists the handoff
// record, and exits with RestartExitCode.
func (c *Coordinator) trigger(ctx context.Context, result CheckResult) {
	if c.Platform != nil && c.Channel != "" {
		msg := fmt.Sprintf("Updating to %s, restarting shortly…", result.LatestVersion)
		if _, err := c.Platform.CreatePost(ctx, c.Channel, msg, ""); err != nil {
			c.Log.Warn("failed to announce update", "error", err)
		}
	}
	if c.Bus != nil {
		_ = c.Bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindUpdateInstalling, Payload: map[string]any{
			"targetVersion": result.LatestVersion,
		}})
	}

	runner := c.RunInstall
	if runner == nil {
		runner = runInstallCommand
	}
	if err := runner(ctx, c.InstallCommand); err != nil {
		c.Log.Warn("update install command failed", "error", err)
		return
	}

	now := c.Clock.Now()
	st := State{
		PreviousVersion: result.CurrentVersion,
		TargetVersion:   result.LatestVersion,
		StartedAt:       &now,
		JustUpdated:     true,
	}
	if err := c.State.Save(st); err != nil {
		c.Log.Warn("failed to persist update handoff state", "error", err)
	}

	code := c.RestartExitCode
	if code == 0 {
		code = DefaultRestartExitCode
	}
	exit := c.Exit
	if exit == nil {
		exit = exitProcess
	}
	exit(code)
}
