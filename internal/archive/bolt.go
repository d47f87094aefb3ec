package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"RagChat/internal/session"
)

var conversationsBucket = []byte("conversations")

type boltRecord struct {
	Title     string            `json:"title"`
	Messages  []session.Message `json:"messages"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BoltStore keeps conversations as JSON records in a single bbolt file,
// keyed by file path.
type BoltStore struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBoltStore opens (creating if needed) the bbolt file at path.
func NewBoltStore(path string, logger *slog.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create conversations bucket: %w", err)
	}
	return &BoltStore{db: db, logger: logger}, nil
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// List returns stored conversations, most recent first. Malformed records
// are skipped.
func (s *BoltStore) List(_ context.Context) ([]ConversationRef, error) {
	type listed struct {
		ref     ConversationRef
		updated time.Time
	}
	var found []listed

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn("skipping malformed conversation record", "file", string(k), "error", err)
				return nil
			}
			found = append(found, listed{
				ref:     ConversationRef{Title: rec.Title, FilePath: string(k)},
				updated: rec.UpdatedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
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
func (s *BoltStore) Fetch(_ context.Context, path string) (*Conversation, error) {
	name, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	var rec *boltRecord
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(conversationsBucket).Get([]byte(name))
		if v == nil {
			return nil
		}
		rec = &boltRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if rec == nil {
		return nil, notFound(path)
	}
	return &Conversation{Title: rec.Title, Messages: nonNil(rec.Messages)}, nil
}

// Persist replaces the record stored under filename.
func (s *BoltStore) Persist(_ context.Context, title, filename string, messages []session.Message) (string, error) {
	name, err := CleanPath(filename)
	if err != nil {
		return "", err
	}

	enc, err := json.Marshal(boltRecord{Title: title, Messages: nonNil(messages), UpdatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversation: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Put([]byte(name), enc)
	})
	if err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}
	s.logger.Info("conversation persisted", "file", name, "message_count", len(messages))
	return name, nil
}

// Delete removes the record stored at path.
func (s *BoltStore) Delete(_ context.Context, path string) error {
	name, err := CleanPath(path)
	if err != nil {
		return err
	}

	existed := false
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b.Get([]byte(name)) == nil {
			return nil
		}
		existed = true
		return b.Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if !existed {
		return notFound(path)
	}
	s.logger.Info("conversation deleted", "file", name)
	return nil
}
