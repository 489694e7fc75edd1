package kaya

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/armatrix/kaya/internal/schema"
)

// delegateInput is the model-facing input of the Task capability. Either
// a single task (subagent_type + prompt) or a batch in Tasks.
type delegateInput struct {
	SubagentType string         `json:"subagent_type,omitempty" jsonschema:"description=Name of the agent to delegate to"`
	Description  string         `json:"description,omitempty" jsonschema:"description=A short (3-5 word) description of the task"`
	Prompt       string         `json:"prompt,omitempty" jsonschema:"description=The full instructions for the agent. The agent sees nothing else from this conversation"`
	Tasks        []delegateItem `json:"tasks,omitempty" jsonschema:"description=Independent tasks to run in parallel. Results come back in the same order"`
}

type delegateItem struct {
	SubagentType string `json:"subagent_type" jsonschema:"required,description=Name of the agent to delegate to"`
	Description  string `json:"description,omitempty" jsonschema:"description=A short (3-5 word) description of the task"`
	Prompt       string `json:"prompt" jsonschema:"required,description=The full instructions for the agent"`
}

// NewDelegateHandle returns the Task capability backed by c. It is given to
// the root conversation only, so sub-agents cannot delegate further.
func NewDelegateHandle(c *Coordinator) Handle {
	return NewLocal(delegateDescription(c.roster), schema.Generate[delegateInput](),
		func(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
			var input delegateInput
			if err := json.Unmarshal(raw, &input); err != nil {
				return ErrorResult(fmt.Sprintf("invalid input: %s", err.Error())), nil
			}
			parent := ContextConversationID(ctx)

			if len(input.Tasks) > 0 {
				tasks := make([]*DelegationTask, 0, len(input.Tasks))
				for _, it := range input.Tasks {
					tasks = append(tasks, NewTask(it.SubagentType, it.Prompt, parent))
				}
				return batchResult(c.DispatchMany(ctx, tasks)), nil
			}

			if input.SubagentType == "" || input.Prompt == "" {
				return ErrorResult("subagent_type and prompt are required (or pass tasks)"), nil
			}
			res := c.Dispatch(ctx, NewTask(input.SubagentType, input.Prompt, parent))
			if !res.OK() {
				return ErrorResult(failureText(res)), nil
			}
			return TextResult(res.Output), nil
		})
}

func delegateDescription(r *Roster) string {
	var sb strings.Builder
	sb.WriteString("Launch a specialized agent to handle a task autonomously.\n\nAvailable agents:\n")
	sb.WriteString(r.Describe())
	sb.WriteString("\nEach agent starts with an empty context and only the tools it was granted: ")
	sb.WriteString("put everything it needs into prompt. ")
	sb.WriteString("Use tasks to run independent pieces of work in parallel.")
	return sb.String()
}

func failureText(res *Result) string {
	if res.State == TaskCancelled {
		return fmt.Sprintf("delegation to %s was cancelled", res.Agent)
	}
	return fmt.Sprintf("delegation to %s failed: %s", res.Agent, res.Reason())
}

// batchResult merges batch results in task order. The call only counts as
// an error when every task failed.
func batchResult(results []*Result) *ToolResult {
	var sb strings.Builder
	failed := 0
	for i, res := range results {
		fmt.Fprintf(&sb, "## Task %d: %s (%s)\n", i+1, res.Agent, res.State)
		if res.OK() {
			sb.WriteString(res.Output)
		} else {
			failed++
			sb.WriteString(failureText(res))
		}
		sb.WriteString("\n\n")
	}
	text := strings.TrimRight(sb.String(), "\n")
	if failed == len(results) {
		return ErrorResult(text)
	}
	return TextResult(text)
}
