package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"RagChat/internal/session"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	file_path TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_path TEXT NOT NULL,
	position INTEGER NOT NULL,
	message_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	model TEXT,
	FOREIGN KEY(conversation_path) REFERENCES conversations(file_path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_path, position);`

// SQLiteStore keeps conversations in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens the database at path and creates the tables.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create conversation tables: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List returns stored conversations, most recent first.
func (s *SQLiteStore) List(ctx context.Context) ([]ConversationRef, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT title, file_path FROM conversations ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	refs := []ConversationRef{}
	for rows.Next() {
		var ref ConversationRef
		if err := rows.Scan(&ref.Title, &ref.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Fetch loads the conversation stored at path.
func (s *SQLiteStore) Fetch(ctx context.Context, path string) (*Conversation, error) {
	name, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	var title string
	err = s.db.QueryRowContext(ctx, "SELECT title FROM conversations WHERE file_path = ?", name).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT message_id, role, content, timestamp, COALESCE(model, '') FROM messages WHERE conversation_path = ? ORDER BY position",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []session.Message{}
	for rows.Next() {
		var msg session.Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp, &msg.Model); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Conversation{Title: title, Messages: messages}, nil
}

// Persist replaces the stored conversation in one transaction.
func (s *SQLiteStore) Persist(ctx context.Context, title, filename string, messages []session.Message) (string, error) {
	name, err := CleanPath(filename)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO conversations (file_path, title, updated_at) VALUES (?, ?, ?)",
		name, title, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_path = ?", name); err != nil {
		return "", fmt.Errorf("failed to clear messages: %w", err)
	}

	for i, msg := range messages {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (conversation_path, position, message_id, role, content, timestamp, model) VALUES (?, ?, ?, ?, ?, ?, ?)",
			name, i, msg.ID, string(msg.Role), msg.Content, msg.Timestamp, msg.Model,
		)
		if err != nil {
			return "", fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("conversation persisted", "file", name, "message_count", len(messages))
	return name, nil
}

// Delete removes the conversation and its messages.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	name, err := CleanPath(path)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_path = ?", name); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE file_path = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(path)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Info("conversation deleted", "file", name)
	return nil
}
