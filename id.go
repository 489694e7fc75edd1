package kaya

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// ID prefix constants for different entity types.
const (
	PrefixSession      = "sess"
	PrefixConversation = "ctx"
	PrefixTask         = "task"
)

// GenerateID produces a unique, lexically time-ordered identifier with the
// given prefix, e.g. "task_01hx3c5v1w9q2n6d8m4b7k0z2r".
func GenerateID(prefix string) string {
	return prefix + "_" + strings.ToLower(ulid.Make().String())
}
