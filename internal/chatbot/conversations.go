package chatbot

import (
	"context"
	"errors"
	"fmt"

	"RagChat/internal/archive"
)

// NewChat clears the transcript, title and document selection.
func (cb *ChatBot) NewChat() error {
	if err := cb.begin(); err != nil {
		return err
	}
	defer cb.end()

	cb.session.Reset()
	cb.documents.Clear()
	cb.notifyMessages(cb.session.Messages())
	cb.logger.Info("started new chat")
	return nil
}

// ListConversations returns the archived conversations, most recent first.
func (cb *ChatBot) ListConversations(ctx context.Context) ([]archive.ConversationRef, error) {
	if cb.archive == nil {
		return []archive.ConversationRef{}, nil
	}
	return cb.archive.List(ctx)
}

// LoadConversation makes the archived conversation at path the active one.
func (cb *ChatBot) LoadConversation(ctx context.Context, ref archive.ConversationRef) error {
	if cb.archive == nil {
		return archive.ErrConversationNotFound
	}
	if err := cb.begin(); err != nil {
		return err
	}
	defer cb.end()
	return cb.load(ctx, ref)
}

func (cb *ChatBot) load(ctx context.Context, ref archive.ConversationRef) error {
	conv, err := cb.archive.Fetch(ctx, ref.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	title := conv.Title
	if title == "" {
		title = ref.Title
	}
	cb.session.Replace(conv.Messages)
	cb.session.SetTitle(title, ref.FilePath)
	cb.notifyMessages(cb.session.Messages())
	cb.logger.Info("conversation loaded", "file", ref.FilePath, "message_count", len(conv.Messages))
	return nil
}

// DeleteConversation removes an archived conversation. If it was the active
// one, the most recent remaining conversation is loaded, or a new chat
// started when none is left.
func (cb *ChatBot) DeleteConversation(ctx context.Context, path string) error {
	if cb.archive == nil {
		return archive.ErrConversationNotFound
	}
	if err := cb.begin(); err != nil {
		return err
	}
	defer cb.end()

	if err := cb.archive.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	cb.logger.Info("conversation deleted", "file", path)

	if !cb.isActive(path) {
		return nil
	}

	refs, err := cb.archive.List(ctx)
	if err != nil {
		cb.logger.Warn("failed to list conversations after delete", "error", err)
	}
	for _, ref := range refs {
		err := cb.load(ctx, ref)
		if err == nil {
			return nil
		}
		if !errors.Is(err, archive.ErrConversationNotFound) {
			cb.logger.Warn("failed to load next conversation", "file", ref.FilePath, "error", err)
		}
	}

	cb.session.Reset()
	cb.documents.Clear()
	cb.notifyMessages(cb.session.Messages())
	return nil
}

func (cb *ChatBot) isActive(path string) bool {
	current := cb.session.FilePath()
	if current == "" {
		return false
	}
	a, errA := archive.CleanPath(current)
	b, errB := archive.CleanPath(path)
	return errA == nil && errB == nil && a == b
}
