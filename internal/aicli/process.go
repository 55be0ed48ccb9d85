// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package aicli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"
)

// ErrAlreadyRunning is returned by Start when the child is already up.
var ErrAlreadyRunning = errors.New("aicli: process already running")

// ErrNotRunning is returned by operations that require a live child.
var ErrNotRunning = errors.New("aicli: process not running")

// stdinUserMessage mirrors the wire shape spec.md §4.1 documents for
// sendMessage: {type:"user", message:{role:"user", content}}.
type stdinUserMessage struct {
	Type    string       `json:"type"`
	Message stdinMessage `json:"message"`
}

type stdinMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Process wraps one AI CLI child tied to a single chatbridge session.
// It owns the child's stdin exclusively (spec.md §5 "the child's stdin
// is owned by a single writer per session").
type Process struct {
	spawner Spawner
	cfg     SpawnConfig
	log     *slog.Logger

	mu              sync.Mutex
	child           Child
	running         bool
	permanentFail   bool
	failureReason   string
	lastStatus      *StatusFile

	events  chan Event
	done    chan struct{}
}

// New creates a Process bound to cfg but does not start it.
func New(spawner Spawner, cfg SpawnConfig, log *slog.Logger) *Process {
	if log == nil {
		log = slog.Default()
	}
	return &Process{
		spawner: spawner,
		cfg:     cfg,
		log:     log,
		events:  make(chan Event, 256),
	}
}

// Events returns the channel of parsed stdout events. Closed when the
// child exits.
func (p *Process) Events() <-chan Event { return p.events }

// Start forks the child. Fails if already running (spec.md §4.1).
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.mu.Unlock()

	child, err := p.spawner.Spawn(ctx, p.cfg)
	if err != nil {
		return fmt.Errorf("spawn ai cli: %w", err)
	}

	p.mu.Lock()
	p.child = child
	p.running = true
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.readLoop(child)
	go p.stderrLoop(child)

	return nil
}

func (p *Process) readLoop(child Child) {
	// Deferred in this order so close(p.events) (registered second)
	// fires before close(p.done): callers waiting on p.done should never
	// observe it closed while p.events could still be non-empty.
	defer close(p.done)
	defer close(p.events)
	for line := range child.Lines() {
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			p.log.Warn("malformed ndjson line, skipping", "error", err)
			continue
		}
		evt.Raw = append(json.RawMessage(nil), line...)
		p.events <- evt
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Process) stderrLoop(child Child) {
	for line := range child.Stderr() {
		p.log.Debug("ai cli stderr", "line", line)
		if permanent, reason := classifyStderrLine(line); permanent {
			p.mu.Lock()
			p.permanentFail = true
			p.failureReason = reason
			p.mu.Unlock()
		}
	}
}

// SendMessage writes one user turn to stdin (spec.md §4.1).
func (p *Process) SendMessage(content []ContentBlock) error {
	p.mu.Lock()
	child, running := p.child, p.running
	p.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	msg := stdinUserMessage{Type: "user", Message: stdinMessage{Role: "user", Content: content}}
	return p.writeStdin(child, msg)
}

// SendToolResult writes a tool_result content block for toolUseID.
func (p *Process) SendToolResult(toolUseID string, content json.RawMessage) error {
	block := ContentBlock{Type: "tool_result", ToolUseID: toolUseID, Content: content}
	return p.SendMessage([]ContentBlock{block})
}

func (p *Process) writeStdin(child Child, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal stdin message: %w", err)
	}
	data = append(data, '\n')
	_, err = child.Stdin().Write(data)
	return err
}

// Interrupt sends SIGINT to the child. Returns false if not running.
func (p *Process) Interrupt() bool {
	p.mu.Lock()
	child, running := p.child, p.running
	p.mu.Unlock()
	if !running {
		return false
	}
	return child.Signal(interruptSignal) == nil
}

// Kill sends SIGTERM and waits for exit, escalating to SIGKILL after a
// grace period if the child is still alive (spec.md §5 cancellation).
// Idempotent.
func (p *Process) Kill(ctx context.Context) error {
	p.mu.Lock()
	child, running := p.child, p.running
	p.mu.Unlock()
	if !running || child == nil {
		return nil
	}

	_ = child.Signal(syscall.SIGTERM)

	grace := time.NewTimer(5 * time.Second)
	defer grace.Stop()
	select {
	case <-p.done:
	case <-grace.C:
		_ = child.Signal(syscall.SIGKILL)
		<-p.done
	case <-ctx.Done():
		_ = child.Signal(syscall.SIGKILL)
	}
	return nil
}

// Running reports whether a child process is currently active.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// PermanentlyFailed reports whether a documented permanent-failure
// substring was seen on stderr (spec.md §4.1, §7(d)).
func (p *Process) PermanentlyFailed() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permanentFail, p.failureReason
}

// HungButAlive distinguishes a silently-crashed child (pid gone) from
// one that is still running but stopped emitting events, using the
// OS process table as the tiebreaker (spec.md §7(f) invariant-violation
// handling).
func (p *Process) HungButAlive() bool {
	p.mu.Lock()
	child := p.child
	p.mu.Unlock()
	if child == nil {
		return false
	}
	return processAlive(child.Pid())
}

// SetStatus records the most recently polled auxiliary status file.
func (p *Process) SetStatus(s *StatusFile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastStatus = s
}

// Status returns the last polled status file, or nil if none observed.
func (p *Process) Status() *StatusFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStatus
}
