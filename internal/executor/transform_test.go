// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollow-creek/chatbridge/internal/aicli"
)

func TestTransformAssistantTextBecomesAppendContent(t *testing.T) {
	msg := aicli.Message{Role: "assistant", Content: []aicli.ContentBlock{{Type: "text", Text: "hello there"}}}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	ops := Transform(aicli.Event{Type: aicli.EventAssistant, Message: raw})
	require.Len(t, ops, 1)
	assert.Equal(t, OpAppendContent, ops[0].Kind)
	assert.Equal(t, "hello there", ops[0].Text)
}

func TestTransformBashToolUseBecomesApproval(t *testing.T) {
	msg := aicli.Message{Role: "assistant", Content: []aicli.ContentBlock{{Type: "tool_use", ID: "t1", Name: "Bash", Input: json.RawMessage(`{"command":"ls"}`)}}}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	ops := Transform(aicli.Event{Type: aicli.EventAssistant, Message: raw})
	require.Len(t, ops, 1)
	assert.Equal(t, OpApproval, ops[0].Kind)
	assert.Equal(t, ApprovalPermission, ops[0].Approval.Kind)
	assert.Equal(t, "t1", ops[0].Approval.ToolUseID)
}

func TestTransformAskUserQuestionBecomesQuestion(t *testing.T) {
	input := `{"questions":[{"header":"Pick one","prompt":"Which?","options":["A","B"]}]}`
	msg := aicli.Message{Role: "assistant", Content: []aicli.ContentBlock{{Type: "tool_use", ID: "t2", Name: "AskUserQuestion", Input: json.RawMessage(input)}}}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	ops := Transform(aicli.Event{Type: aicli.EventAssistant, Message: raw})
	require.Len(t, ops, 1)
	require.Equal(t, OpQuestion, ops[0].Kind)
	require.Len(t, ops[0].Questions, 1)
	assert.Equal(t, []string{"A", "B"}, ops[0].Questions[0].Options)
}

func TestTransformSubagentToolUseBecomesSubagentOp(t *testing.T) {
	msg := aicli.Message{Role: "assistant", Content: []aicli.ContentBlock{{Type: "tool_use", ID: "t3", Name: "Task"}}}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	ops := Transform(aicli.Event{Type: aicli.EventAssistant, Message: raw})
	require.Len(t, ops, 1)
	assert.Equal(t, OpSubagent, ops[0].Kind)
	assert.Equal(t, "t3", ops[0].ToolUseID)
}

func TestTransformResultEventFlushesAndEndsTurn(t *testing.T) {
	ops := Transform(aicli.Event{Type: aicli.EventResult})
	require.Len(t, ops, 2)
	assert.Equal(t, OpFlush, ops[0].Kind)
	assert.Equal(t, OpLifecycle, ops[1].Kind)
	assert.Equal(t, LifecycleTurnEnded, ops[1].Lifecycle)
}

func TestTransformResultErrorAddsSystemMessage(t *testing.T) {
	ops := Transform(aicli.Event{Type: aicli.EventResult, IsError: true})
	require.Len(t, ops, 3)
	assert.Equal(t, OpSystemMessage, ops[1].Kind)
	assert.Equal(t, SeverityError, ops[1].Severity)
}

func TestTransformThinkingBlockProducesNoOp(t *testing.T) {
	msg := aicli.Message{Role: "assistant", Content: []aicli.ContentBlock{{Type: "thinking", Thinking: "pondering"}}}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	ops := Transform(aicli.Event{Type: aicli.EventAssistant, Message: raw})
	assert.Empty(t, ops)
}
