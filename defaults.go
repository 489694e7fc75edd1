package kaya

import "github.com/anthropics/anthropic-sdk-go"

const (
	// DefaultModel is used by the coordinating agent when no model is configured.
	DefaultModel = anthropic.ModelClaudeSonnet4_5

	// defaultMaxTokens is the maximum output tokens per response.
	defaultMaxTokens = 16_384

	// defaultChildMaxTurns bounds a sub-agent run when its definition sets no limit.
	defaultChildMaxTurns = 50

	// TaskCapability is the name of the delegation capability given to the
	// root conversation.
	TaskCapability = "Task"
)
