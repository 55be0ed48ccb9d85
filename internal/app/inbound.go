// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hollow-creek/chatbridge/internal/aicli"
	"github.com/hollow-creek/chatbridge/internal/command"
	"github.com/hollow-creek/chatbridge/internal/executor"
	"github.com/hollow-creek/chatbridge/internal/interactive"
	"github.com/hollow-creek/chatbridge/internal/platform"
	"github.com/hollow-creek/chatbridge/internal/session"
	"github.com/hollow-creek/chatbridge/internal/store"
)

// readInbound is the daemon's single consumer of the platform's event
// stream: every inbound message or reaction is handled serially here,
// so a session's Process/Worktree fields (not mutex-guarded) are only
// ever touched from this one goroutine.
func (a *App) readInbound(ctx context.Context) {
	inbound := a.platform.Inbound()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-inbound:
			if !ok {
				return
			}
			switch v := raw.(type) {
			case platform.InboundMessage:
				a.handleInboundMessage(ctx, v)
			case platform.InboundReaction:
				if _, err := a.router.Route(ctx, v); err != nil {
					a.log.Warn("failed to route reaction", "error", err)
				}
			default:
				a.log.Warn("unrecognized inbound event type", "type", fmt.Sprintf("%T", v))
			}
		}
	}
}

func threadIDFor(post platform.Post) string {
	if post.ThreadRoot != "" {
		return post.ThreadRoot
	}
	return post.ID
}

// handleInboundMessage routes a message to its session's text handler
// if one already exists for the thread, or considers starting a new
// one (spec.md §4.2: "a session is created on first mention in a
// thread").
func (a *App) handleInboundMessage(ctx context.Context, msg platform.InboundMessage) {
	threadID := threadIDFor(msg.Post)
	if sess, ok := a.sessions.Get(a.cfg.Platform.Kind, threadID); ok {
		a.handleExistingSessionText(ctx, sess, msg.Post.Text)
		return
	}

	if !a.platform.IsBotMentioned(msg.Post.Text) {
		return
	}
	if !a.platform.IsUserAllowed(msg.User.Username) {
		if _, err := a.platform.CreatePost(ctx, msg.Post.ChannelID, "Sorry @"+msg.User.Username+", you're not allowed to start sessions here.", threadID); err != nil {
			a.log.Warn("failed to post access-denied notice", "error", err)
		}
		return
	}
	a.startNewSession(ctx, msg, threadID)
}

// startNewSession spawns a session's AI child immediately so its
// header post (and Handlers) exist, then works out whether a worktree
// needs to be offered or created before the user's actual prompt is
// delivered. Stacked "!cd"/"!permissions"/"!worktree" prefixes on the
// starting message (spec.md §4.4) are peeled and applied up front
// rather than deferred to a pending prompt.
func (a *App) startNewSession(ctx context.Context, msg platform.InboundMessage, threadID string) {
	prompt := a.platform.ExtractPrompt(msg.Post.Text)
	stacked, rest := command.PeelStackable(prompt)
	prompt = rest

	workDir := a.repoRoot
	interactivePerms := a.cfg.Session.InteractivePermissions
	explicitBranch := ""
	for _, sc := range stacked {
		switch sc.Name {
		case command.ChangeDir:
			workDir = resolveDir(a.repoRoot, sc.Arg)
		case command.Permissions:
			interactivePerms = true
		case command.Worktree:
			explicitBranch = sc.Arg
		}
	}

	num := a.nextSessionNumber(threadID)
	opts := session.StartOptions{
		PlatformID:       a.cfg.Platform.Kind,
		ThreadID:         threadID,
		Channel:          msg.Post.ChannelID,
		StarterUsername:  msg.User.Username,
		WorkDir:          workDir,
		AllowedUsers:     append([]string{msg.User.Username}, a.cfg.Platform.AllowedUsers...),
		InteractivePerms: interactivePerms,
		SessionNumber:    num,
		HeaderText:       a.renderSessionHeader(msg.User.Username, num),
	}
	sess, err := a.controller.StartSession(ctx, opts)
	if err != nil {
		a.log.Warn("failed to start session", "error", err)
		if _, perr := a.platform.CreatePost(ctx, msg.Post.ChannelID, "Failed to start a session: "+err.Error(), threadID); perr != nil {
			a.log.Warn("failed to post session-start failure", "error", perr)
		}
		return
	}
	h := a.wireSession(sess)

	if explicitBranch != "" {
		if err := a.createWorktreeAndSwitch(ctx, sess, h, explicitBranch); err != nil {
			a.log.Warn("failed to create stacked worktree", "sessionId", sess.ID, "branch", explicitBranch, "error", err)
		}
		a.deliverInitialPrompt(ctx, sess, h, prompt)
		return
	}

	switch a.cfg.Worktree.Mode {
	case "always":
		if err := a.createWorktreeAndSwitch(ctx, sess, h, defaultBranchName(sess)); err != nil {
			a.log.Warn("failed to create mandatory worktree", "sessionId", sess.ID, "error", err)
		}
		a.deliverInitialPrompt(ctx, sess, h, prompt)
	case "never":
		a.deliverInitialPrompt(ctx, sess, h, prompt)
	default: // "prompt"
		status, err := a.git.Status(ctx, workDir)
		if err != nil {
			a.log.Warn("failed to check repository status", "workDir", workDir, "error", err)
			a.deliverInitialPrompt(ctx, sess, h, prompt)
			return
		}
		if !status.HasChanges() {
			a.deliverInitialPrompt(ctx, sess, h, prompt)
			return
		}
		if err := h.OfferInitialWorktreePrompt(ctx, []string{defaultBranchName(sess)}, prompt, nil); err != nil {
			a.log.Warn("failed to offer worktree prompt", "sessionId", sess.ID, "error", err)
		}
	}
}

func resolveDir(base, path string) string {
	if path == "" {
		return base
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func defaultBranchName(sess *session.Session) string {
	return "session-" + sess.ID[:8]
}

func (a *App) nextSessionNumber(threadID string) int {
	a.countersMu.Lock()
	defer a.countersMu.Unlock()
	a.sessionCounters[threadID]++
	return a.sessionCounters[threadID]
}

func (a *App) renderSessionHeader(username string, num int) string {
	f := a.platform.GetFormatter()
	title := fmt.Sprintf("%s session #%d", a.appName, num)
	return f.FormatHeading(title, 3) + "\nStarted by @" + username
}

// deliverInitialPrompt decides whether to offer prior-thread context
// before sending prompt, per spec.md §4.6's context prompt. It is
// also the second half of the worktree flow: once a worktree decision
// resolves (or was never needed), this is what actually releases the
// user's held first message to the AI child.
func (a *App) deliverInitialPrompt(ctx context.Context, sess *session.Session, h *interactive.Handlers, prompt string) {
	history, err := a.platform.GetThreadHistory(ctx, sess.ThreadID, 1000, true)
	if err != nil {
		a.log.Warn("failed to fetch thread history for context prompt", "sessionId", sess.ID, "error", err)
		a.sendHeldPrompt(sess, prompt)
		return
	}
	if err := h.OfferContextPrompt(ctx, len(history), prompt, nil); err != nil {
		a.log.Warn("failed to offer context prompt", "sessionId", sess.ID, "error", err)
	}
}

func (a *App) sendHeldPrompt(sess *session.Session, text string) {
	sess.TouchActivity(a.clock.Now())
	sess.IncrementMessageCount()
	if sess.Process == nil {
		return
	}
	if err := sess.Process.SendMessage([]aicli.ContentBlock{{Type: "text", Text: text}}); err != nil {
		a.log.Warn("failed to send prompt to AI CLI", "sessionId", sess.ID, "error", err)
	}
}

// wireSession builds a session's executor set and interactive
// Handlers, registers both with the router and the app's own
// session-ID-to-Handlers index (needed for text-reply routing, which
// Router.handlersFor doesn't expose outside its package), and starts
// the goroutine pumping its AI child's events.
func (a *App) wireSession(sess *session.Session) *interactive.Handlers {
	content := executor.NewContent(a.platform, sess.Channel, sess.ThreadID, a.log)
	tasks := executor.NewTaskList(a.platform, sess.Channel, sess.ThreadID)
	sys := executor.NewSystem(a.platform, sess.Channel, sess.ThreadID)
	subagent := executor.NewSubagent(a.platform, sess.Channel, sess.ThreadID, a.log)
	h := interactive.New(sess, a.platform, a.pending, a.sessions, a.bus, a.clock, a.log)
	sess.Dispatcher = executor.NewDispatcher(content, tasks, sys, subagent, h, h, a.log)

	a.router.Register(h)
	a.handlersMu.Lock()
	a.handlers[sess.ID] = h
	a.handlersMu.Unlock()

	sess.PumpDone = make(chan struct{})
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// Deliberately not tied to the caller's ctx: a session's event
		// pump must keep draining and tearing down the session even if
		// the inbound handler that spawned it was itself short-lived.
		a.pumpEvents(context.Background(), sess, h)
	}()
	return h
}

func (a *App) handlerFor(sessionID string) *interactive.Handlers {
	a.handlersMu.Lock()
	defer a.handlersMu.Unlock()
	return a.handlers[sessionID]
}

// pumpEvents drains one session's AI child until it exits or a result
// event ends the turn. Every event is transformed and dispatched;
// assistant text is additionally scanned for the allow-listed command
// subset the AI itself may emit (spec.md §4.4). A successful terminal
// result gets a trailing "Done!" marker appended to the streaming
// content post before the final flush, and ends the session per
// spec.md §4.2's "destroyed on ... terminal AI result event".
func (a *App) pumpEvents(ctx context.Context, sess *session.Session, h *interactive.Handlers) {
	if sess.Process == nil {
		return
	}
	// Captured once: a mid-loop respawn replaces sess.PumpDone with a
	// fresh channel for the new pump goroutine, so this goroutine must
	// close the one it started with, not whatever sess.PumpDone points
	// to by the time it returns.
	done := sess.PumpDone
	if done != nil {
		defer close(done)
	}
	for event := range sess.Process.Events() {
		if event.Type == aicli.EventAssistant {
			if text := assistantText(event); text != "" {
				for _, cmd := range command.ParseAIOutput(text) {
					a.handleCommand(ctx, sess, h, cmd)
				}
			}
		}
		if event.IsTerminalResult() && !event.IsError {
			sess.Dispatcher.Content.Append("\n\nDone!")
		}
		if err := sess.Dispatcher.HandleEvent(ctx, event); err != nil {
			a.log.Warn("failed to dispatch AI CLI event", "sessionId", sess.ID, "error", err)
		}
		if event.IsTerminalResult() {
			sess.TouchActivity(a.clock.Now())
			if err := a.endSession(ctx, sess, true); err != nil {
				a.log.Warn("failed to end session on terminal result", "sessionId", sess.ID, "error", err)
			}
			return
		}
	}
}

func assistantText(event aicli.Event) string {
	msg, err := event.ParsedMessage()
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Kind() == aicli.BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// endSession tears a session down and drops it from every app-level
// index the router doesn't already own.
func (a *App) endSession(ctx context.Context, sess *session.Session, unpersist bool) error {
	a.router.Unregister(sess.ID)
	a.handlersMu.Lock()
	delete(a.handlers, sess.ID)
	a.handlersMu.Unlock()
	return a.controller.KillSession(ctx, sess, unpersist)
}

// handleExistingSessionText routes a free-form reply within an
// already-running session's thread: first a recognized "!"-command,
// then any pending-prompt text resolution (worktree branch name,
// question number), then a plain forwarded user turn.
func (a *App) handleExistingSessionText(ctx context.Context, sess *session.Session, text string) {
	h := a.handlerFor(sess.ID)
	if h == nil {
		return
	}

	if cmd, ok := command.Parse(text); ok {
		a.handleCommand(ctx, sess, h, cmd)
		return
	}
	if consumed, err := h.ResolveWorktreeText(ctx, text, a.handleWorktreeResolved); consumed {
		if err != nil {
			a.log.Warn("failed to resolve worktree reply", "sessionId", sess.ID, "error", err)
		}
		return
	}
	if consumed, err := h.ResolveQuestionText(ctx, text); consumed {
		if err != nil {
			a.log.Warn("failed to resolve question reply", "sessionId", sess.ID, "error", err)
		}
		return
	}

	a.sendHeldPrompt(sess, text)
}

// handleCommand executes one parsed "!"-command against a live
// session (spec.md §4.4). Approve only resolves via reaction; its
// text form is accepted as input but intentionally a no-op here.
func (a *App) handleCommand(ctx context.Context, sess *session.Session, h *interactive.Handlers, cmd command.Command) {
	sess.TouchActivity(a.clock.Now())
	switch cmd.Name {
	case command.Stop, command.Kill:
		if _, err := a.platform.CreatePost(ctx, sess.Channel, "🛑 Session ended.", sess.ThreadID); err != nil {
			a.log.Warn("failed to post session-stop notice", "error", err)
		}
		if err := a.endSession(ctx, sess, true); err != nil {
			a.log.Warn("failed to end session", "sessionId", sess.ID, "error", err)
		}
	case command.Escape:
		if sess.Process != nil {
			sess.Process.Interrupt()
		}
		sess.SetLifecycle(session.LifecycleInterrupted)
		if _, err := a.platform.CreatePost(ctx, sess.Channel, "⏸ Interrupted.", sess.ThreadID); err != nil {
			a.log.Warn("failed to post interrupt notice", "error", err)
		}
	case command.Approve:
		a.log.Info("approve only resolves via reaction; ignoring text form", "sessionId", sess.ID)
	case command.Help:
		a.postHelp(ctx, sess)
	case command.ReleaseNotes:
		a.postReleaseNotes(ctx, sess)
	case command.ChangeDir:
		a.handleChangeDir(ctx, sess, h, cmd.Arg)
	case command.Worktree:
		a.handleWorktreeCommand(ctx, sess, h, cmd.Arg)
	case command.Invite:
		a.handleInvite(ctx, sess, cmd.Arg)
	case command.Kick:
		a.handleKick(ctx, sess, cmd.Arg)
	case command.Permissions:
		a.handlePermissions(ctx, sess, cmd.Arg)
	case command.Update:
		a.handleUpdateCommand(ctx, sess)
	case command.Context:
		a.postSessionStatus(ctx, sess)
	case command.Cost:
		a.postCost(ctx, sess)
	case command.Bug:
		a.offerBugReport(ctx, sess, h, cmd.Arg)
	case command.Compact, command.Plugin, command.Catchall:
		a.forwardRawCommand(sess, cmd)
	}
}

func (a *App) handleChangeDir(ctx context.Context, sess *session.Session, h *interactive.Handlers, arg string) {
	if arg == "" {
		if _, err := a.platform.CreatePost(ctx, sess.Channel, "Current directory: "+sess.WorkDir, sess.ThreadID); err != nil {
			a.log.Warn("failed to post cd status", "error", err)
		}
		return
	}
	dir := resolveDir(sess.WorkDir, arg)
	if err := a.respawnInDir(ctx, sess, h, dir); err != nil {
		a.log.Warn("failed to change session directory", "sessionId", sess.ID, "dir", dir, "error", err)
		if _, perr := a.platform.CreatePost(ctx, sess.Channel, "Failed to switch directory: "+err.Error(), sess.ThreadID); perr != nil {
			a.log.Warn("failed to post cd failure", "error", perr)
		}
		return
	}
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "Now working in "+dir, sess.ThreadID); err != nil {
		a.log.Warn("failed to post cd confirmation", "error", err)
	}
}

func (a *App) handleWorktreeCommand(ctx context.Context, sess *session.Session, h *interactive.Handlers, arg string) {
	switch arg {
	case "", "status":
		text := "No worktree bound to this session; working in " + sess.WorkDir + "."
		if sess.Worktree != nil {
			text = fmt.Sprintf("Worktree: %s (branch %s)", sess.Worktree.WorktreePath, sess.Worktree.Branch)
		}
		if _, err := a.platform.CreatePost(ctx, sess.Channel, text, sess.ThreadID); err != nil {
			a.log.Warn("failed to post worktree status", "error", err)
		}
	case "list":
		worktrees, err := a.worktree.List()
		text := "No worktrees."
		if err != nil {
			text = "Failed to list worktrees: " + err.Error()
		} else if len(worktrees) > 0 {
			var b strings.Builder
			for _, wt := range worktrees {
				fmt.Fprintf(&b, "- %s (branch %s)\n", wt.Path, wt.Branch)
			}
			text = b.String()
		}
		if _, err := a.platform.CreatePost(ctx, sess.Channel, text, sess.ThreadID); err != nil {
			a.log.Warn("failed to post worktree list", "error", err)
		}
	case "cleanup":
		a.cleanupSessionWorktree(ctx, sess)
	default:
		if err := a.createWorktreeAndSwitch(ctx, sess, h, arg); err != nil {
			a.log.Warn("failed to switch worktree", "sessionId", sess.ID, "branch", arg, "error", err)
			if _, perr := a.platform.CreatePost(ctx, sess.Channel, "Failed to create worktree for "+arg+": "+err.Error(), sess.ThreadID); perr != nil {
				a.log.Warn("failed to post worktree error", "error", perr)
			}
			return
		}
		if _, err := a.platform.CreatePost(ctx, sess.Channel, "Switched to worktree branch "+arg+".", sess.ThreadID); err != nil {
			a.log.Warn("failed to post worktree switch confirmation", "error", err)
		}
	}
}

// cleanupSessionWorktree removes the session's owned worktree. It is
// refused when the session does not own the worktree or another live
// session's worktree has the same path. A failure here ends the
// session per spec.md §4.2's "(d) worktree cleanup failure during a
// !worktree cleanup" destruction trigger.
func (a *App) cleanupSessionWorktree(ctx context.Context, sess *session.Session) {
	if sess.Worktree == nil || !sess.Worktree.IsWorktreeOwner {
		if _, err := a.platform.CreatePost(ctx, sess.Channel, "This session has no worktree to clean up.", sess.ThreadID); err != nil {
			a.log.Warn("failed to post worktree cleanup notice", "error", err)
		}
		return
	}
	for _, other := range a.sessions.All() {
		if other.ID != sess.ID && other.Worktree != nil && other.Worktree.WorktreePath == sess.Worktree.WorktreePath {
			if _, err := a.platform.CreatePost(ctx, sess.Channel, "Another session is using this worktree; not cleaning it up.", sess.ThreadID); err != nil {
				a.log.Warn("failed to post worktree cleanup notice", "error", err)
			}
			return
		}
	}
	if err := a.worktree.Remove(ctx, sess.Worktree.WorktreePath, false); err != nil {
		a.log.Warn("worktree cleanup failed, ending session", "sessionId", sess.ID, "error", err)
		if _, perr := a.platform.CreatePost(ctx, sess.Channel, "Worktree cleanup failed, ending session: "+err.Error(), sess.ThreadID); perr != nil {
			a.log.Warn("failed to post worktree cleanup failure", "error", perr)
		}
		if err := a.endSession(ctx, sess, true); err != nil {
			a.log.Warn("failed to end session after worktree cleanup failure", "sessionId", sess.ID, "error", err)
		}
		return
	}
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "Worktree cleaned up.", sess.ThreadID); err != nil {
		a.log.Warn("failed to post worktree cleanup confirmation", "error", err)
	}
}

func (a *App) handleInvite(ctx context.Context, sess *session.Session, arg string) {
	username := strings.TrimPrefix(strings.TrimSpace(arg), "@")
	if username == "" {
		return
	}
	for _, u := range sess.AllowedUsers {
		if u == username {
			return
		}
	}
	sess.AllowedUsers = append(sess.AllowedUsers, username)
	if err := a.controller.Persist(sess); err != nil {
		a.log.Warn("failed to persist invite", "sessionId", sess.ID, "error", err)
	}
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "Invited @"+username+".", sess.ThreadID); err != nil {
		a.log.Warn("failed to post invite confirmation", "error", err)
	}
}

func (a *App) handleKick(ctx context.Context, sess *session.Session, arg string) {
	username := strings.TrimPrefix(strings.TrimSpace(arg), "@")
	kept := sess.AllowedUsers[:0]
	for _, u := range sess.AllowedUsers {
		if u != username {
			kept = append(kept, u)
		}
	}
	sess.AllowedUsers = kept
	if err := a.controller.Persist(sess); err != nil {
		a.log.Warn("failed to persist kick", "sessionId", sess.ID, "error", err)
	}
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "Removed @"+username+".", sess.ThreadID); err != nil {
		a.log.Warn("failed to post kick confirmation", "error", err)
	}
}

func (a *App) handlePermissions(ctx context.Context, sess *session.Session, arg string) {
	if command.UpgradeToAutoRejected(command.Command{Name: command.Permissions, Arg: arg}) {
		if _, err := a.platform.CreatePost(ctx, sess.Channel, "Switching to auto-approve is not allowed.", sess.ThreadID); err != nil {
			a.log.Warn("failed to post permissions rejection", "error", err)
		}
		return
	}
	sess.InteractivePerms = true
	if err := a.controller.Persist(sess); err != nil {
		a.log.Warn("failed to persist permissions change", "sessionId", sess.ID, "error", err)
	}
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "Switched to interactive permissions.", sess.ThreadID); err != nil {
		a.log.Warn("failed to post permissions confirmation", "error", err)
	}
}

func (a *App) handleUpdateCommand(ctx context.Context, sess *session.Session) {
	if a.updateChk == nil {
		if _, err := a.platform.CreatePost(ctx, sess.Channel, "Auto-update is disabled.", sess.ThreadID); err != nil {
			a.log.Warn("failed to post update status", "error", err)
		}
		return
	}
	result, err := a.updateChk.Check(ctx)
	if err != nil {
		a.log.Warn("update check failed", "sessionId", sess.ID, "error", err)
		if _, perr := a.platform.CreatePost(ctx, sess.Channel, "Update check failed: "+err.Error(), sess.ThreadID); perr != nil {
			a.log.Warn("failed to post update check failure", "error", perr)
		}
		return
	}
	text := fmt.Sprintf("Running %s; latest is %s.", result.CurrentVersion, result.LatestVersion)
	if result.UpdateNeeded {
		text = fmt.Sprintf("Update available: %s → %s.", result.CurrentVersion, result.LatestVersion)
	}
	if _, err := a.platform.CreatePost(ctx, sess.Channel, text, sess.ThreadID); err != nil {
		a.log.Warn("failed to post update status", "error", err)
	}
}

func (a *App) postSessionStatus(ctx context.Context, sess *session.Session) {
	text := fmt.Sprintf("Messages: %d\nWorking directory: %s", sess.MessageCount(), sess.WorkDir)
	if sess.Worktree != nil {
		text += fmt.Sprintf("\nWorktree: %s (branch %s)", sess.Worktree.WorktreePath, sess.Worktree.Branch)
	}
	if _, err := a.platform.CreatePost(ctx, sess.Channel, text, sess.ThreadID); err != nil {
		a.log.Warn("failed to post session status", "error", err)
	}
}

func (a *App) postCost(ctx context.Context, sess *session.Session) {
	text := "No cost data yet."
	if sess.Process != nil {
		if st := sess.Process.Status(); st != nil {
			text = fmt.Sprintf("Model: %s\nCost: $%.4f\nTokens: %d in / %d out", st.Model, st.TotalCostUSD, st.InputTokens, st.OutputTokens)
		}
	}
	if _, err := a.platform.CreatePost(ctx, sess.Channel, text, sess.ThreadID); err != nil {
		a.log.Warn("failed to post cost", "error", err)
	}
}

func (a *App) postHelp(ctx context.Context, sess *session.Session) {
	text := "Commands: !stop !escape !approve !help !release-notes !cd <dir> !worktree [branch|list|cleanup] " +
		"!invite @user !kick @user !permissions interactive !update !context !cost !compact !plugin !kill !bug [text]"
	if _, err := a.platform.CreatePost(ctx, sess.Channel, text, sess.ThreadID); err != nil {
		a.log.Warn("failed to post help", "error", err)
	}
}

func (a *App) postReleaseNotes(ctx context.Context, sess *session.Session) {
	text := a.appName + " " + a.buildVersion
	if _, err := a.platform.CreatePost(ctx, sess.Channel, text, sess.ThreadID); err != nil {
		a.log.Warn("failed to post release notes", "error", err)
	}
}

func (a *App) offerBugReport(ctx context.Context, sess *session.Session, h *interactive.Handlers, arg string) {
	title := arg
	if title == "" {
		title = "Reported via !bug"
	}
	reportContext := fmt.Sprintf("session=%s thread=%s channel=%s", sess.ID, sess.ThreadID, sess.Channel)
	if err := h.OfferBugReport(ctx, firstLine(title), title, reportContext); err != nil {
		a.log.Warn("failed to offer bug report", "sessionId", sess.ID, "error", err)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		return s[:80] + "…"
	}
	return s
}

// forwardRawCommand hands an unrecognized-by-chatbridge "!"-command
// straight to the AI CLI's own slash-command dispatcher (spec.md
// §4.4's "dynamic catch-all"), along with !compact and !plugin, which
// name AI-side commands rather than chatbridge ones.
func (a *App) forwardRawCommand(sess *session.Session, cmd command.Command) {
	name := string(cmd.Name)
	if cmd.Name == command.Catchall {
		name = cmd.Word
	}
	text := "/" + name
	if cmd.Arg != "" {
		text += " " + cmd.Arg
	}
	sess.TouchActivity(a.clock.Now())
	sess.IncrementMessageCount()
	if sess.Process == nil {
		return
	}
	if err := sess.Process.SendMessage([]aicli.ContentBlock{{Type: "text", Text: text}}); err != nil {
		a.log.Warn("failed to forward command to AI CLI", "sessionId", sess.ID, "command", text, "error", err)
	}
}

// respawnInDir kills a session's current AI child and starts a new one
// resuming the same AI-side conversation (SpawnConfig.Resume) rooted
// at newDir. aicli.SpawnConfig.WorkDir can't be changed on an
// already-running child, so a directory switch ("!cd", or a worktree
// created mid-session) always goes through a kill-and-respawn.
//
// sess.Process is reassigned here outside the usual construction path
// (session.Session's exported fields, Process among them, are not
// guarded by mu); this is safe only
// because every inbound event — including this one — is handled
// serially by the single goroutine running readInbound/pumpEvents.
func (a *App) respawnInDir(ctx context.Context, sess *session.Session, h *interactive.Handlers, newDir string) error {
	old := sess.Process
	oldDone := sess.PumpDone
	proc := aicli.New(a.controller.Spawner, aicli.SpawnConfig{
		SessionUUID:     sess.AISessionUUID,
		Resume:          true,
		WorkDir:         newDir,
		SkipPermissions: !sess.InteractivePerms,
	}, a.log)
	if err := proc.Start(ctx); err != nil {
		return fmt.Errorf("respawn AI CLI in %s: %w", newDir, err)
	}
	if old != nil {
		if err := old.Kill(ctx); err != nil {
			a.log.Warn("failed to kill prior AI CLI child before respawn", "sessionId", sess.ID, "error", err)
		}
		// Kill only waits for the child process to exit, not for the old
		// pump goroutine to finish dispatching whatever it already read
		// off Events() before the channel closed. Wait for that too, so
		// the old and new pump goroutines never call Dispatcher.HandleEvent
		// concurrently on the same session.
		if oldDone != nil {
			<-oldDone
		}
	}
	sess.Process = proc
	sess.WorkDir = newDir
	sess.PumpDone = make(chan struct{})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pumpEvents(context.Background(), sess, h)
	}()

	if err := a.controller.Persist(sess); err != nil {
		a.log.Warn("failed to persist session after respawn", "sessionId", sess.ID, "error", err)
	}
	return nil
}

// createWorktreeAndSwitch creates a worktree for branch off the
// session's repo root and respawns the session's AI child into it.
func (a *App) createWorktreeAndSwitch(ctx context.Context, sess *session.Session, h *interactive.Handlers, branch string) error {
	info, err := a.worktree.Create(ctx, a.repoRoot, branch, sess.ID)
	if err != nil {
		return err
	}
	if err := a.respawnInDir(ctx, sess, h, info.Path); err != nil {
		return err
	}
	sess.Worktree = &session.WorktreeBinding{RepoRoot: a.repoRoot, WorktreePath: info.Path, Branch: branch, IsWorktreeOwner: true}
	return a.controller.Persist(sess)
}

// handleWorktreeResolved implements interactive.WorktreeResolvedFunc:
// skip sends the held prompt as-is; a chosen branch creates and
// switches into a worktree first, falling back to the failure-retry
// prompt if creation fails.
func (a *App) handleWorktreeResolved(ctx context.Context, decision interactive.WorktreeDecision) {
	h := a.handlerFor(decision.SessionID)
	if h == nil {
		return
	}
	sess := h.Session

	if decision.Skip {
		a.deliverInitialPrompt(ctx, sess, h, decision.QueuedPrompt)
		return
	}
	if err := a.createWorktreeAndSwitch(ctx, sess, h, decision.BranchName); err != nil {
		a.log.Warn("failed to create worktree", "sessionId", sess.ID, "branch", decision.BranchName, "error", err)
		if perr := h.OfferWorktreeFailurePrompt(ctx, decision.BranchName, err.Error(), decision.QueuedPrompt, decision.QueuedFiles); perr != nil {
			a.log.Warn("failed to post worktree failure prompt", "sessionId", sess.ID, "error", perr)
		}
		return
	}
	a.deliverInitialPrompt(ctx, sess, h, decision.QueuedPrompt)
}

// handleMessageApprovalSent implements interactive.MessageSentFunc:
// an approved message is posted to the configured channel outside any
// thread.
func (a *App) handleMessageApprovalSent(ctx context.Context, text string) error {
	_, err := a.platform.CreatePost(ctx, a.cfg.Platform.Channel, text, "")
	return err
}

// handleSessionCancel implements the router's OnSessionCancel
// callback (!stop / X reaction on the session header).
func (a *App) handleSessionCancel(ctx context.Context, sess *session.Session) {
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "🛑 Session cancelled.", sess.ThreadID); err != nil {
		a.log.Warn("failed to post cancel notice", "sessionId", sess.ID, "error", err)
	}
	if err := a.endSession(ctx, sess, true); err != nil {
		a.log.Warn("failed to cancel session", "sessionId", sess.ID, "error", err)
	}
}

// handleSessionInterrupt implements the router's OnSessionInterrupt
// callback (pause reaction on the session header).
func (a *App) handleSessionInterrupt(ctx context.Context, sess *session.Session) {
	if sess.Process != nil {
		sess.Process.Interrupt()
	}
	sess.SetLifecycle(session.LifecycleInterrupted)
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "⏸ Interrupted.", sess.ThreadID); err != nil {
		a.log.Warn("failed to post interrupt notice", "sessionId", sess.ID, "error", err)
	}
}

// handleIdleWarn and handleIdleTimeout implement the Controller.Run
// callbacks (spec.md §4.11's idle monitor).
func (a *App) handleIdleWarn(ctx context.Context, sess *session.Session) {
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "This session will time out soon due to inactivity.", sess.ThreadID); err != nil {
		a.log.Warn("failed to post idle warning", "sessionId", sess.ID, "error", err)
	}
}

func (a *App) handleIdleTimeout(ctx context.Context, sess *session.Session) {
	if _, err := a.platform.CreatePost(ctx, sess.Channel, "Session timed out due to inactivity.", sess.ThreadID); err != nil {
		a.log.Warn("failed to post idle timeout notice", "sessionId", sess.ID, "error", err)
	}
	// unpersist=false: an idle-timed-out session stays in the store as
	// paused, resumable later (spec.md §4.11 "Resume"), unlike an
	// explicit !stop.
	if err := a.endSession(ctx, sess, false); err != nil {
		a.log.Warn("failed to end idle session", "sessionId", sess.ID, "error", err)
	}
}

// resumeSession implements interactive.ResumeFunc: re-instantiate a
// paused session's AI child with Resume:true and re-register its
// executors and Handlers.
func (a *App) resumeSession(ctx context.Context, snap store.Snapshot) (*session.Session, error) {
	proc := aicli.New(a.controller.Spawner, aicli.SpawnConfig{
		SessionUUID:     snap.AISessionUUID,
		Resume:          true,
		WorkDir:         snap.WorkDir,
		SkipPermissions: !snap.InteractivePerms,
	}, a.log)
	if err := proc.Start(ctx); err != nil {
		return nil, fmt.Errorf("resume AI CLI: %w", err)
	}

	sess := &session.Session{
		ID:                  snap.SessionID,
		PlatformID:          snap.PlatformID,
		ThreadID:            snap.ThreadID,
		Channel:             a.cfg.Platform.Channel,
		StarterUsername:     snap.StarterUsername,
		StartedAt:           snap.StartedAt,
		SessionNumber:       snap.SessionNumber,
		WorkDir:             snap.WorkDir,
		AllowedUsers:        snap.AllowedUsers,
		InteractivePerms:    snap.InteractivePerms,
		SessionHeaderPostID: snap.SessionHeaderPostID,
		SessionStartPostID:  snap.SessionStartPostID,
		LifecyclePostID:     snap.LifecyclePostID,
		AISessionUUID:       snap.AISessionUUID,
		Process:             proc,
	}
	if snap.Worktree != nil {
		sess.Worktree = &session.WorktreeBinding{
			RepoRoot:        snap.Worktree.RepoRoot,
			WorktreePath:    snap.Worktree.WorktreePath,
			Branch:          snap.Worktree.Branch,
			IsWorktreeOwner: snap.Worktree.IsWorktreeOwner,
		}
	}
	sess.SetLifecycle(session.LifecycleActive)
	sess.TouchActivity(a.clock.Now())
	sess.SetPlanApproved(snap.PlanApproved)
	sess.SetLastError(snap.LastError)
	for i := 0; i < snap.MessageCount; i++ {
		sess.IncrementMessageCount()
	}

	a.sessions.Insert(sess)
	if sess.SessionHeaderPostID != "" {
		a.sessions.BindPost(sess.SessionHeaderPostID, sess)
	}
	a.wireSession(sess)

	if _, err := a.platform.CreatePost(ctx, sess.Channel, "🔄 Session resumed.", sess.ThreadID); err != nil {
		a.log.Warn("failed to post session-resumed notice", "sessionId", sess.ID, "error", err)
	}
	if err := a.controller.Persist(sess); err != nil {
		a.log.Warn("failed to persist resumed session", "sessionId", sess.ID, "error", err)
	}
	return sess, nil
}

// resumeAll resumes every persisted non-ended session at startup.
func (a *App) resumeAll(ctx context.Context) error {
	doc, err := a.store.Load()
	if err != nil {
		return fmt.Errorf("load persisted sessions: %w", err)
	}
	for _, snap := range doc.Sessions {
		if snap.PlatformID != a.cfg.Platform.Kind {
			continue
		}
		if snap.Lifecycle == string(session.LifecycleEnded) {
			continue
		}
		if _, err := a.resumeSession(ctx, snap); err != nil {
			a.log.Warn("failed to resume persisted session", "sessionId", snap.SessionID, "error", err)
		}
	}
	return nil
}
