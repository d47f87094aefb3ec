package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"RagChat/internal/session"
)

type storedFile struct {
	Title     string            `json:"title"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Messages  []session.Message `json:"messages"`
}

// FileStore keeps one JSON file per conversation in a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates dir if needed and returns a store over it.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// List returns all stored conversations, most recent first. Unreadable
// files are skipped.
func (s *FileStore) List(_ context.Context) ([]ConversationRef, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationRef{}, nil
		}
		return nil, fmt.Errorf("failed to read conversations directory: %w", err)
	}

	type listed struct {
		ref     ConversationRef
		updated time.Time
	}
	var found []listed
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		stored, err := s.read(entry.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable conversation", "file", entry.Name(), "error", err)
			continue
		}
		found = append(found, listed{
			ref:     ConversationRef{Title: stored.Title, FilePath: entry.Name()},
			updated: stored.UpdatedAt,
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].updated.After(found[j].updated)
	})

	refs := make([]ConversationRef, len(found))
	for i, f := range found {
		refs[i] = f.ref
	}
	return refs, nil
}

// Fetch loads the conversation stored at path.
func (s *FileStore) Fetch(_ context.Context, path string) (*Conversation, error) {
	name, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	stored, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return &Conversation{Title: stored.Title, Messages: nonNil(stored.Messages)}, nil
}

// Persist writes the conversation atomically.
func (s *FileStore) Persist(_ context.Context, title, filename string, messages []session.Message) (string, error) {
	name, err := CleanPath(filename)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(storedFile{
		Title:     title,
		UpdatedAt: time.Now().UTC(),
		Messages:  nonNil(messages),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, name), data); err != nil {
		return "", err
	}
	s.logger.Info("conversation persisted", "file", name, "message_count", len(messages))
	return name, nil
}

// Delete removes the conversation file at path.
func (s *FileStore) Delete(_ context.Context, path string) error {
	name, err := CleanPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound(path)
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	s.logger.Info("conversation deleted", "file", name)
	return nil
}

func (s *FileStore) read(name string) (*storedFile, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	var stored storedFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse conversation %s: %w", name, err)
	}
	if stored.Title == "" {
		stored.Title = strings.TrimSuffix(name, ".json")
	}
	return &stored, nil
}

// writeFileAtomic writes to a temp file in the same directory and renames
// it over path.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}
