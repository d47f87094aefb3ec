// Package archive persists conversation transcripts. Stores address a
// conversation by its file path, which is the filename derived from its
// title.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"RagChat/internal/session"
)

var (
	// ErrConversationNotFound is returned when no conversation exists at a path.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrInvalidPath is returned for paths that would leave the store.
	ErrInvalidPath = errors.New("invalid conversation path")
)

// ConversationRef identifies a stored conversation.
type ConversationRef struct {
	Title    string `json:"title"`
	FilePath string `json:"filePath"`
}

// Conversation is a stored transcript.
type Conversation struct {
	Title    string            `json:"title"`
	Messages []session.Message `json:"messages"`
}

// Archive is the persistence contract for conversations.
type Archive interface {
	// List returns stored conversations, most recently updated first.
	List(ctx context.Context) ([]ConversationRef, error)
	// Fetch loads the conversation at path.
	Fetch(ctx context.Context, path string) (*Conversation, error)
	// Persist writes messages under filename, replacing any previous
	// version, and returns the path to fetch it by.
	Persist(ctx context.Context, title, filename string, messages []session.Message) (string, error)
	// Delete removes the conversation at path.
	Delete(ctx context.Context, path string) error
}

// CleanPath reduces path to the base name a store keys conversations by.
// Directory prefixes such as "./conversations/" are accepted and dropped;
// parent references and names without a .json suffix are rejected.
func CleanPath(path string) (string, error) {
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
		}
	}
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".json") || name == ".json" {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return name, nil
}

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrConversationNotFound, path)
}

func nonNil(messages []session.Message) []session.Message {
	if messages == nil {
		return []session.Message{}
	}
	return messages
}
