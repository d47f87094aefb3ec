package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RagChat/internal/config"
	"RagChat/internal/session"
)

func stores(t *testing.T) map[string]Archive {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "conversations"), nil)
	require.NoError(t, err)

	sqlite, err := NewSQLiteStore(filepath.Join(dir, "conversations.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	bolt, err := NewBoltStore(filepath.Join(dir, "conversations.bolt"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]Archive{"file": file, "sqlite": sqlite, "bolt": bolt}
}

func transcript() []session.Message {
	return []session.Message{
		{ID: "h1", Role: session.RoleHuman, Timestamp: 1700000000000, Content: "What is the power requirement?"},
		{ID: "a1", Role: session.RoleAssistant, Timestamp: 1700000001000, Content: "Two 1600W supplies.", Model: "llama3"},
		{ID: "h2", Role: session.RoleHuman, Timestamp: 1700000002000, Content: "And cooling?"},
	}
}

func TestPersistFetchRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			title := "Server Power Requirements"
			filename := session.ConversationFilename(title)

			path, err := store.Persist(ctx, title, filename, transcript())
			require.NoError(t, err)
			assert.Equal(t, "server_power_requirements.json", path)

			conv, err := store.Fetch(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, title, conv.Title)
			assert.Equal(t, transcript(), conv.Messages)
		})
	}
}

func TestPersistReplacesAndDeletedMessageStaysGone(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			path, err := store.Persist(ctx, "T", "t.json", transcript())
			require.NoError(t, err)

			filtered := transcript()
			filtered = append(filtered[:1], filtered[2:]...)
			_, err = store.Persist(ctx, "T", "t.json", filtered)
			require.NoError(t, err)

			conv, err := store.Fetch(ctx, path)
			require.NoError(t, err)
			require.Len(t, conv.Messages, 2)
			for _, m := range conv.Messages {
				assert.NotEqual(t, "a1", m.ID)
			}
		})
	}
}

func TestListMostRecentFirst(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)

			refs, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, refs)

			_, err = store.Persist(ctx, "Older", "older.json", transcript())
			require.NoError(t, err)
			time.Sleep(10 * time.Millisecond)
			_, err = store.Persist(ctx, "Newer", "newer.json", nil)
			require.NoError(t, err)

			refs, err = store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []ConversationRef{
				{Title: "Newer", FilePath: "newer.json"},
				{Title: "Older", FilePath: "older.json"},
			}, refs)
		})
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			_, err := store.Persist(ctx, "T", "t.json", transcript())
			require.NoError(t, err)

			require.NoError(t, store.Delete(ctx, "t.json"))

			_, err = store.Fetch(ctx, "t.json")
			assert.True(t, errors.Is(err, ErrConversationNotFound))
			assert.True(t, errors.Is(store.Delete(ctx, "t.json"), ErrConversationNotFound))

			refs, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, refs)
		})
	}
}

func TestEmptyTranscriptFetchesAsEmptyList(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Persist(testContext(t), "Empty", "empty.json", nil)
			require.NoError(t, err)
			conv, err := store.Fetch(testContext(t), "empty.json")
			require.NoError(t, err)
			assert.NotNil(t, conv.Messages)
			assert.Empty(t, conv.Messages)
		})
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"power.json", "power.json", false},
		{"./conversations/power.json", "power.json", false},
		{"conversations/power.json", "power.json", false},
		{"../secrets.json", "", true},
		{"conversations/../../etc/passwd.json", "", true},
		{"notes.txt", "", true},
		{".json", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := CleanPath(tc.path)
		if tc.wantErr {
			assert.True(t, errors.Is(err, ErrInvalidPath), tc.path)
			continue
		}
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.want, got)
	}
}

func TestFileStoreConfinesWrites(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "conversations"), nil)
	require.NoError(t, err)

	_, err = store.Persist(testContext(t), "x", "../escape.json", transcript())
	assert.True(t, errors.Is(err, ErrInvalidPath))
	_, statErr := os.Stat(filepath.Join(dir, "escape.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	_, err = store.Persist(testContext(t), "Good", "good.json", transcript())
	require.NoError(t, err)

	refs, err := store.List(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []ConversationRef{{Title: "Good", FilePath: "good.json"}}, refs)
}

func TestFileStoreReadsLegacyTranscript(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	legacy := `{"messages":[{"type":"human","id":"x1","timestamp":1,"content":"hi"},{"type":"ai","id":"x2","timestamp":2,"content":"hello","model":"llama3"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeting.json"), []byte(legacy), 0o644))

	conv, err := store.Fetch(testContext(t), "greeting.json")
	require.NoError(t, err)
	assert.Equal(t, "greeting", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, session.RoleAssistant, conv.Messages[1].Role)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ConversationsDir = filepath.Join(dir, "conversations")
	cfg.ArchiveDBPath = filepath.Join(dir, "archive.db")

	tests := []struct {
		backend string
		check   func(Archive) bool
	}{
		{config.ArchiveFile, func(a Archive) bool { _, ok := a.(*FileStore); return ok }},
		{config.ArchiveSQLite, func(a Archive) bool { _, ok := a.(*SQLiteStore); return ok }},
	}
	for _, tc := range tests {
		cfg.ArchiveBackend = tc.backend
		a, closeFn, err := Open(&cfg, nil)
		require.NoError(t, err)
		assert.True(t, tc.check(a), tc.backend)
		require.NoError(t, closeFn())
	}

	cfg.ArchiveBackend = config.ArchiveBolt
	cfg.ArchiveDBPath = filepath.Join(dir, "archive.bolt")
	a, closeFn, err := Open(&cfg, nil)
	require.NoError(t, err)
	_, ok := a.(*BoltStore)
	assert.True(t, ok)
	require.NoError(t, closeFn())

	cfg.ArchiveURL = "http://localhost:8080"
	a, _, err = Open(&cfg, nil)
	require.NoError(t, err)
	_, ok = a.(*Client)
	assert.True(t, ok)
}
