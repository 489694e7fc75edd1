package transcript

import (
	"context"
	"fmt"
	"sync"

	"github.com/armatrix/kaya"
)

// MemoryStore keeps transcripts in a map. Conversations are copied on save
// and load so callers cannot mutate stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*kaya.Conversation
}

var _ kaya.ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*kaya.Conversation)}
}

func (m *MemoryStore) Save(_ context.Context, conv *kaya.Conversation) error {
	if conv == nil {
		return fmt.Errorf("transcript: conversation is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[conv.ID] = clone(conv)
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*kaya.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(c), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.convs, id)
	return nil
}

// List returns summaries of every transcript, newest first.
func (m *MemoryStore) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.convs))
	for _, c := range m.convs {
		out = append(out, summarize(c))
	}
	newestFirst(out)
	return out, nil
}

// Children returns summaries of the transcripts delegated from parentID.
func (m *MemoryStore) Children(ctx context.Context, parentID string) ([]Summary, error) {
	all, _ := m.List(ctx)
	return children(all, parentID), nil
}

func children(all []Summary, parentID string) []Summary {
	var out []Summary
	for _, s := range all {
		if s.ParentID == parentID {
			out = append(out, s)
		}
	}
	return out
}
