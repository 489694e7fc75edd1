package kaya

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Conversation is one isolated execution context: the root session's or a
// single delegation task's. It is owned by exactly one of them.
type Conversation struct {
	ID           string
	ParentID     string // empty for the root conversation
	Agent        string
	Model        anthropic.Model
	SystemPrompt string
	Messages     []anthropic.MessageParam
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewConversation creates an empty root conversation.
func NewConversation(agentName string, model anthropic.Model, systemPrompt string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:           GenerateID(PrefixConversation),
		Agent:        agentName,
		Model:        model,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// newChildConversation seeds a sub-agent conversation with the agent's
// system prompt and a single user message carrying instructions. Nothing
// from the parent is copied.
func newChildConversation(parentID string, def AgentDefinition, model anthropic.Model, instructions string) *Conversation {
	c := NewConversation(def.Name, model, def.SystemPrompt)
	c.ParentID = parentID
	c.Messages = []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(instructions)),
	}
	return c
}

// IsRoot reports whether c has no parent.
func (c *Conversation) IsRoot() bool { return c.ParentID == "" }

// AppendUser adds a user text turn.
func (c *Conversation) AppendUser(text string) {
	c.Messages = append(c.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
	c.UpdatedAt = time.Now()
}

// LastAssistantText returns the text of the most recent assistant message.
func (c *Conversation) LastAssistantText() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role != anthropic.MessageParamRoleAssistant {
			continue
		}
		var parts []string
		for _, block := range m.Content {
			if t := block.GetText(); t != nil && *t != "" {
				parts = append(parts, *t)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// ConversationStore persists conversations.
type ConversationStore interface {
	Save(ctx context.Context, conv *Conversation) error
	Load(ctx context.Context, id string) (*Conversation, error)
	Delete(ctx context.Context, id string) error
}
