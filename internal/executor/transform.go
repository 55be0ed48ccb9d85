// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"encoding/json"

	"github.com/hollow-creek/chatbridge/internal/aicli"
)

// subagentToolName is the tool_use name the AI CLI emits for a
// delegated subagent task.
const subagentToolName = "Task"

// askUserQuestionTool is the tool_use name for a multi-choice question.
const askUserQuestionTool = "AskUserQuestion"

// toolsRequiringApproval lists tool_use names that always need human
// sign-off even under auto-approved permissions (destructive or
// side-effecting operations). Anything else routes through the
// session's interactive-permissions setting, decided by the caller.
var toolsRequiringApproval = map[string]bool{
	"Bash":  true,
	"Write": true,
	"Edit":  true,
}

type askUserQuestionInput struct {
	Questions []struct {
		Header  string   `json:"header"`
		Prompt  string   `json:"prompt"`
		Options []string `json:"options"`
	} `json:"questions"`
}

type taskListInput struct {
	Tasks []struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Status  string `json:"status"`
	} `json:"tasks"`
}

// Transform converts one AI CLI stream event into zero or more Ops, in
// emission order. It is stateless: all per-session state lives in the
// executors that consume the returned Ops.
func Transform(event aicli.Event) []Op {
	switch event.Type {
	case aicli.EventSystem:
		return transformSystem(event)
	case aicli.EventAssistant, aicli.EventUser:
		return transformMessage(event)
	case aicli.EventResult:
		return transformResult(event)
	default:
		return nil
	}
}

func transformSystem(event aicli.Event) []Op {
	switch event.Subtype {
	case "init":
		return []Op{{Kind: OpLifecycle, Lifecycle: LifecycleStarted}}
	case "error":
		return []Op{{Kind: OpSystemMessage, Severity: SeverityError, Text: event.Subtype}}
	default:
		return nil
	}
}

func transformResult(event aicli.Event) []Op {
	ops := []Op{{Kind: OpFlush}}
	if event.IsError {
		ops = append(ops, Op{Kind: OpSystemMessage, Severity: SeverityError, Text: "the AI CLI reported an error ending this turn"})
	}
	ops = append(ops, Op{Kind: OpLifecycle, Lifecycle: LifecycleTurnEnded})
	return ops
}

func transformMessage(event aicli.Event) []Op {
	msg, err := event.ParsedMessage()
	if err != nil {
		return []Op{{Kind: OpSystemMessage, Severity: SeverityWarn, Text: "could not parse a message from the AI CLI: " + err.Error()}}
	}

	var ops []Op
	for _, block := range msg.Content {
		switch block.Kind() {
		case aicli.BlockText:
			if block.Text != "" {
				ops = append(ops, Op{Kind: OpAppendContent, Text: block.Text})
			}
		case aicli.BlockThinking:
			// Thinking blocks are intentionally not surfaced to the
			// chat thread — spec.md §4.5 names only the assistant's
			// rendered content and tool activity as postable.
		case aicli.BlockToolUse:
			ops = append(ops, transformToolUse(block)...)
		case aicli.BlockToolResult:
			if block.ToolUseID != "" {
				ops = append(ops, Op{Kind: OpAppendContent, ToolUseID: block.ToolUseID, Text: string(block.Content)})
			}
		case aicli.BlockControl:
			ops = append(ops, transformControl(block)...)
		case aicli.BlockUnknown:
			// Logged by the caller from the raw event; never crash on
			// an unrecognized block type (spec.md §9).
		}
	}
	return ops
}

func transformToolUse(block aicli.ContentBlock) []Op {
	switch block.Name {
	case askUserQuestionTool:
		var input askUserQuestionInput
		if err := json.Unmarshal(block.Input, &input); err != nil || len(input.Questions) == 0 {
			return nil
		}
		specs := make([]QuestionSpec, 0, len(input.Questions))
		for _, q := range input.Questions {
			specs = append(specs, QuestionSpec{Header: q.Header, Prompt: q.Prompt, Options: q.Options})
		}
		return []Op{{Kind: OpQuestion, ToolUseID: block.ID, Questions: specs}}
	case subagentToolName:
		return []Op{{Kind: OpSubagent, ToolUseID: block.ID, Text: toolUseSummary(block)}}
	default:
		if toolsRequiringApproval[block.Name] {
			return []Op{{Kind: OpApproval, Approval: ApprovalRequest{
				Kind:      ApprovalPermission,
				ToolUseID: block.ID,
				Summary:   toolUseSummary(block),
			}}}
		}
		return []Op{{Kind: OpAppendContent, Text: toolUseSummary(block)}}
	}
}

func transformControl(block aicli.ContentBlock) []Op {
	switch block.Type {
	case "plan":
		return []Op{{Kind: OpApproval, Approval: ApprovalRequest{
			Kind:      ApprovalPlan,
			ToolUseID: block.ID,
			Summary:   block.Text,
		}}}
	case "task_list":
		var input taskListInput
		if err := json.Unmarshal(block.Input, &input); err != nil {
			return nil
		}
		items := make([]TaskItem, 0, len(input.Tasks))
		for _, t := range input.Tasks {
			items = append(items, TaskItem{ID: t.ID, Content: t.Content, Status: t.Status})
		}
		return []Op{{Kind: OpTaskList, Tasks: items}}
	default:
		return nil
	}
}

// toolUseSummary renders a one-line "🔧 ToolName" marker the
// content breaker recognizes as a tool_marker breakpoint.
func toolUseSummary(block aicli.ContentBlock) string {
	return "🔧 " + block.Name + "\n"
}
