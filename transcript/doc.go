// Package transcript persists conversations: the root session's and every
// delegated task's. Sub-agent transcripts are linked to their parent through
// Conversation.ParentID.
//
// Available stores:
//   - [MemoryStore] keeps transcripts in memory (useful for testing).
//   - [FileStore] persists each transcript as a JSON file on disk.
package transcript

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/armatrix/kaya"
)

// ErrNotFound is returned when no transcript has the requested ID.
var ErrNotFound = errors.New("transcript: not found")

// Summary describes a stored transcript without its messages.
type Summary struct {
	ID        string
	ParentID  string
	Agent     string
	Model     anthropic.Model
	Messages  int
	UpdatedAt time.Time
}

func summarize(c *kaya.Conversation) Summary {
	return Summary{
		ID:        c.ID,
		ParentID:  c.ParentID,
		Agent:     c.Agent,
		Model:     c.Model,
		Messages:  len(c.Messages),
		UpdatedAt: c.UpdatedAt,
	}
}

// newestFirst orders summaries by UpdatedAt descending, then by ID.
func newestFirst(s []Summary) {
	slices.SortFunc(s, func(a, b Summary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func clone(c *kaya.Conversation) *kaya.Conversation {
	out := *c
	out.Messages = slices.Clone(c.Messages)
	return &out
}
