// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires chatbridge's components into one running daemon:
// the session registry and controller, the interactive reaction
// router, the executor set each session drives its child through, the
// worktree manager, the background cleanup scheduler, the auto-update
// coordinator, the sticky status post, and the bug-report tracker.
//
// Grounded on the teacher's internal/app.App: a single container type
// constructed once at startup (New), wired together (Initialize),
// started (Start), and run until a signal or internal shutdown
// request arrives (Run), tearing every component down in reverse
// order (Shutdown). The teacher's container holds service/worktree/
// terminal/proxy/log managers for a dev dashboard; this one holds
// spec.md §4's session/interactive/executor/worktree/cleanup/update/
// sticky/bugreport set instead, and replaces the teacher's HTTP-API-
// driven control surface with an inbound chat-message loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hollow-creek/chatbridge/internal/aicli"
	"github.com/hollow-creek/chatbridge/internal/bugreport"
	"github.com/hollow-creek/chatbridge/internal/cleanup"
	"github.com/hollow-creek/chatbridge/internal/clock"
	"github.com/hollow-creek/chatbridge/internal/config"
	"github.com/hollow-creek/chatbridge/internal/eventbus"
	"github.com/hollow-creek/chatbridge/internal/interactive"
	"github.com/hollow-creek/chatbridge/internal/message"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
	"github.com/hollow-creek/chatbridge/internal/sticky"
	"github.com/hollow-creek/chatbridge/internal/store"
	"github.com/hollow-creek/chatbridge/internal/update"
	"github.com/hollow-creek/chatbridge/internal/worktree"
)

// Options configures a new App. Platform is the only required field
// beyond Config: the adapter that actually talks to the chat backend
// is a deployment-specific plugin outside spec scope (spec.md §6), so
// the caller constructs and injects it.
type Options struct {
	Config       config.Config
	Platform     platform.Platform
	AppName      string // defaults to "chatbridge"
	BuildVersion string
	Log          *slog.Logger
}

// App is the running daemon: every long-lived component plus the
// glue connecting inbound chat events to session state.
type App struct {
	cfg          config.Config
	appName      string
	buildVersion string
	log          *slog.Logger
	clock        clock.Clock

	platform    platform.Platform
	store       *store.Store
	bus         eventbus.Bus
	sessions    *session.Registry
	pending     *message.Registry
	controller  *session.Controller
	worktree    worktree.Manager
	git         worktree.GitExecutor
	repoRoot    string
	router      *interactive.Router
	cleanup     *cleanup.Scheduler
	updateChk   *update.Checker
	updateCoord *update.Coordinator
	updateState *update.StateStore
	sticky      *sticky.Renderer
	bugs        *bugreport.Tracker

	stickySub eventbus.SubscriptionID

	handlersMu sync.Mutex
	handlers   map[string]*interactive.Handlers // sessionID -> Handlers, mirrors Router's own bookkeeping for text-reply routing

	countersMu      sync.Mutex
	sessionCounters map[string]int // threadID -> count, for session header numbering

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New constructs every component and wires their callbacks together,
// but starts none of the daemon's loops and makes no platform
// connection; the event bus's own history pruner is the one goroutine
// it starts.
func New(opts Options) (*App, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("app: Platform is required")
	}

	appName := opts.AppName
	if appName == "" {
		appName = "chatbridge"
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	clk := clock.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	storePath := filepath.Join(home, ".config", appName, "sessions.json")
	updateStatePath := filepath.Join(home, "."+appName, "update-state.json")
	bugDir := filepath.Join(home, "."+appName, "bugreports")
	worktreeRoot := opts.Config.Worktree.Root
	if worktreeRoot == "" {
		worktreeRoot = filepath.Join(home, "."+appName, "worktrees")
	} else {
		worktreeRoot = expandHome(worktreeRoot, home)
	}
	threadLogDir := expandHome(opts.Config.Cleanup.ThreadLogDir, home)

	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	bus := eventbus.NewMemoryBus(eventbus.HistoryConfig{MaxEvents: 2000}, log)
	st := store.New(storePath, opts.Config.Platform.Kind)
	sessions := session.NewRegistry()
	pending := message.NewRegistry(clk)
	git := worktree.NewRealGitExecutor()
	wt := worktree.NewManager(git, bus, clk, log, worktreeRoot)

	controller := session.NewController(sessions, st, pending, bus, clk, aicli.ExecSpawner{}, opts.Platform, log)
	if opts.Config.Session.IdleTimeout > 0 {
		controller.IdleTimeout = opts.Config.Session.IdleTimeout
	}
	if opts.Config.Session.IdleWarning > 0 {
		controller.IdleWarning = opts.Config.Session.IdleWarning
	}

	a := &App{
		cfg:             opts.Config,
		appName:         appName,
		buildVersion:    opts.BuildVersion,
		log:             log,
		clock:           clk,
		platform:        opts.Platform,
		store:           st,
		bus:             bus,
		sessions:        sessions,
		pending:         pending,
		controller:      controller,
		worktree:        wt,
		git:             git,
		repoRoot:        repoRoot,
		handlers:        make(map[string]*interactive.Handlers),
		sessionCounters: make(map[string]int),
		done:            make(chan struct{}),
	}

	a.router = interactive.NewRouter(sessions, st, a.resumeSession)
	a.router.OnWorktreeResolved = a.handleWorktreeResolved
	a.router.OnMessageApprovalSent = a.handleMessageApprovalSent
	a.router.OnSessionCancel = a.handleSessionCancel
	a.router.OnSessionInterrupt = a.handleSessionInterrupt

	a.bugs = bugreport.NewTracker(bugDir, 0, 0, clk)
	a.router.OnBugReportFiled = a.bugs.File

	a.cleanup = cleanup.New(sessions, st, wt, bus, clk, log)
	if opts.Config.Cleanup.Interval > 0 {
		a.cleanup.Interval = opts.Config.Cleanup.Interval
	}
	if opts.Config.Cleanup.WorktreeMaxAge > 0 {
		a.cleanup.WorktreeMaxAge = opts.Config.Cleanup.WorktreeMaxAge
	}
	if opts.Config.Cleanup.LogRetention > 0 {
		a.cleanup.LogRetention = opts.Config.Cleanup.LogRetention
	}
	a.cleanup.LogRetentionEnabled = opts.Config.Cleanup.LogRetentionEnabled
	a.cleanup.ThreadLogDir = threadLogDir
	if opts.Config.Cleanup.StoreRetention > 0 {
		a.cleanup.StoreRetention = opts.Config.Cleanup.StoreRetention
	}
	a.cleanup.ScheduleExpr = opts.Config.Cleanup.ScheduleExpr

	if opts.Config.Update.Enabled {
		a.updateState = update.NewStateStore(updateStatePath)
		ttl := opts.Config.Update.CheckInterval
		if ttl <= 0 {
			ttl = time.Hour
		}
		a.updateChk = update.NewChecker(opts.Config.Update.RegistryURL, opts.BuildVersion, ttl)
		a.updateCoord = update.New(a.updateChk, a.updateState, sessions, opts.Platform, opts.Config.Platform.Channel, bus, clk, log)
		a.updateCoord.Mode = update.Mode(opts.Config.Update.Mode)
		if opts.Config.Update.IdleTimeoutMinutes > 0 {
			a.updateCoord.IdleTimeout = time.Duration(opts.Config.Update.IdleTimeoutMinutes) * time.Minute
		}
		if opts.Config.Update.QuietTimeoutMinutes > 0 {
			a.updateCoord.QuietTimeout = time.Duration(opts.Config.Update.QuietTimeoutMinutes) * time.Minute
		}
		if opts.Config.Update.AskTimeoutMinutes > 0 {
			a.updateCoord.AskTimeout = time.Duration(opts.Config.Update.AskTimeoutMinutes) * time.Minute
		}
		a.updateCoord.ScheduleStartHour = opts.Config.Update.ScheduleStartHour
		a.updateCoord.ScheduleEndHour = opts.Config.Update.ScheduleEndHour
		a.updateCoord.InstallCommand = opts.Config.Update.InstallCommand
	}

	a.sticky = sticky.New(sessions, st, opts.Platform, opts.Config.Platform.Kind, opts.Config.Platform.Channel, opts.BuildVersion, clk, log)

	return a, nil
}

// expandHome replaces a leading "~" with home; config values like
// "~/.chatbridge/logs" are documented that way (spec.md §6) but
// os.ReadFile et al. don't expand it themselves.
func expandHome(path, home string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Initialize connects to the platform and announces any pending
// post-update notification left over from a prior restart.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.platform.Connect(ctx); err != nil {
		return fmt.Errorf("connect platform: %w", err)
	}
	if a.updateState != nil {
		if err := update.AnnouncePostUpdate(ctx, a.updateState, a.platform, a.cfg.Platform.Channel); err != nil {
			a.log.Warn("failed to announce post-update notice", "error", err)
		}
	}
	if err := a.resumeAll(ctx); err != nil {
		a.log.Warn("failed to resume persisted sessions", "error", err)
	}
	return nil
}

// Start launches every background loop: the session idle monitor, the
// cleanup scheduler, the auto-update coordinator, the sticky-post
// watcher, and the inbound platform event reader.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.controller.Run(ctx, a.handleIdleWarn, a.handleIdleTimeout)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cleanup.Run(ctx)
	}()

	if a.updateCoord != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.updateCoord.Run(ctx)
		}()
	}

	sub, err := sticky.Watch(a.bus, a.sticky)
	if err != nil {
		return fmt.Errorf("start sticky watcher: %w", err)
	}
	a.stickySub = sub
	if err := a.sticky.Refresh(ctx); err != nil {
		a.log.Warn("initial sticky refresh failed", "error", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.readInbound(ctx)
	}()

	return nil
}

// Run blocks until ctx is cancelled, a termination signal arrives, or
// Stop is called, then shuts every component down.
func (a *App) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case <-sigCh:
		a.log.Info("received shutdown signal")
	case <-a.done:
	}
	return a.Shutdown(context.Background())
}

// Stop requests Run to return and Shutdown to proceed, from outside
// the signal/ctx paths (e.g. a test, or an operator command).
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

// TriggerCleanup runs one cleanup scan immediately instead of waiting
// for the scheduler's next tick, for the operator-facing force-cleanup
// command (spec.md §4.8, cmd/chatbridgectl).
func (a *App) TriggerCleanup(ctx context.Context) {
	a.cleanup.Scan(ctx)
}

// Shutdown tears every component down in reverse start order,
// persisting live sessions so they can be resumed on next startup.
func (a *App) Shutdown(ctx context.Context) error {
	a.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	a.controller.Stop()
	a.cleanup.Stop()
	if a.updateCoord != nil {
		a.updateCoord.Stop()
	}
	if a.stickySub != "" {
		_ = a.bus.Unsubscribe(a.stickySub)
	}

	for _, sess := range a.sessions.All() {
		if err := a.controller.Persist(sess); err != nil {
			a.log.Warn("failed to persist session on shutdown", "sessionId", sess.ID, "error", err)
		}
	}

	a.wg.Wait()
	if err := a.platform.Disconnect(); err != nil {
		a.log.Warn("failed to disconnect platform cleanly", "error", err)
	}
	_ = a.bus.Close()
	return nil
}
