package tools

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/armatrix/kaya"
)

// Todo statuses.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// TodoInput defines the input for the TodoWrite tool.
type TodoInput struct {
	Todos []TodoItem `json:"todos" jsonschema:"required,description=The complete todo list; replaces the previous one"`
}

// TodoItem represents a single todo entry.
type TodoItem struct {
	ID      string `json:"id" jsonschema:"required,description=Unique identifier"`
	Content string `json:"content" jsonschema:"required,description=Task description"`
	Status  string `json:"status" jsonschema:"required,enum=pending,enum=in_progress,enum=completed"`
}

// TodoTool keeps one todo list per conversation. A sub-agent writing its own
// list never replaces the root's.
type TodoTool struct {
	mu    sync.RWMutex
	lists map[string][]TodoItem
}

var _ kaya.Tool[TodoInput] = (*TodoTool)(nil)

func (t *TodoTool) Name() string        { return "TodoWrite" }
func (t *TodoTool) Description() string { return "Write and update a todo list for tracking task progress" }

func (t *TodoTool) Execute(ctx context.Context, input TodoInput) (*kaya.ToolResult, error) {
	counts := map[string]int{}
	for _, item := range input.Todos {
		switch item.Status {
		case TodoPending, TodoInProgress, TodoCompleted:
			counts[item.Status]++
		default:
			return kaya.ErrorResult(fmt.Sprintf("todo %q: invalid status %q", item.ID, item.Status)), nil
		}
	}

	t.mu.Lock()
	if t.lists == nil {
		t.lists = make(map[string][]TodoItem)
	}
	t.lists[kaya.ContextConversationID(ctx)] = slices.Clone(input.Todos)
	t.mu.Unlock()

	return kaya.TextResult(fmt.Sprintf("Todo list updated: %d pending, %d in progress, %d completed",
		counts[TodoPending], counts[TodoInProgress], counts[TodoCompleted])), nil
}

// Todos returns a snapshot of the list written in the given conversation.
func (t *TodoTool) Todos(conversationID string) []TodoItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.lists[conversationID])
}
