package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/armatrix/kaya"
)

const formatVersion = 1

// FileStore persists each transcript as {id}.json in a directory. Writes go
// through a temporary file and a rename, so a crash never leaves a torn file.
type FileStore struct {
	dir string
}

var _ kaya.ConversationStore = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory transcripts are written to.
func (f *FileStore) Dir() string { return f.dir }

type transcriptJSON struct {
	Version      int                      `json:"version"`
	ID           string                   `json:"id"`
	ParentID     string                   `json:"parent_id,omitempty"`
	Agent        string                   `json:"agent"`
	Model        string                   `json:"model"`
	SystemPrompt string                   `json:"system_prompt,omitempty"`
	Messages     []anthropic.MessageParam `json:"messages"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func (f *FileStore) Save(_ context.Context, conv *kaya.Conversation) error {
	if conv == nil {
		return fmt.Errorf("transcript: conversation is nil")
	}
	if err := validID(conv.ID); err != nil {
		return err
	}

	b, err := json.MarshalIndent(transcriptJSON{
		Version:      formatVersion,
		ID:           conv.ID,
		ParentID:     conv.ParentID,
		Agent:        conv.Agent,
		Model:        string(conv.Model),
		SystemPrompt: conv.SystemPrompt,
		Messages:     conv.Messages,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, conv.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(conv.ID)); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, id string) (*kaya.Conversation, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var data transcriptJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("unmarshal transcript %s: %w", id, err)
	}
	if data.Version > formatVersion {
		return nil, fmt.Errorf("transcript %s: unsupported format version %d", id, data.Version)
	}
	return &kaya.Conversation{
		ID:           data.ID,
		ParentID:     data.ParentID,
		Agent:        data.Agent,
		Model:        anthropic.Model(data.Model),
		SystemPrompt: data.SystemPrompt,
		Messages:     data.Messages,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}, nil
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	err := os.Remove(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("remove transcript: %w", err)
	}
	return nil
}

// List returns summaries of every readable transcript, newest first.
// Corrupt files are skipped.
func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read transcript dir: %w", err)
	}
	var out []Summary
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		c, err := f.Load(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, summarize(c))
	}
	newestFirst(out)
	return out, nil
}

// Children returns summaries of the transcripts delegated from parentID.
func (f *FileStore) Children(ctx context.Context, parentID string) ([]Summary, error) {
	all, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	return children(all, parentID), nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".json")
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("transcript: invalid id %q", id)
	}
	return nil
}
