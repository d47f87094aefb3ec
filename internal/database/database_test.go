package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "ragchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInstructionsKeepPositionOrder(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveInstruction(Instruction{ID: "b", Name: "B", Content: "b", Position: 1}))
	require.NoError(t, store.SaveInstruction(Instruction{ID: "a", Name: "A", Content: "a", Position: 0}))

	got, err := store.Instructions()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestSaveInstructionUpserts(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveInstruction(Instruction{ID: "a", Name: "A", Content: "old", Position: 0}))
	require.NoError(t, store.SaveInstruction(Instruction{ID: "a", Name: "A2", Content: "new", Position: 0}))

	got, err := store.Instructions()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A2", got[0].Name)
	assert.Equal(t, "new", got[0].Content)
}

func TestPreferences(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Preference("initialLocalLM")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetPreference("initialLocalLM", "llama3"))
	require.NoError(t, store.SetPreference("initialLocalLM", "mistral"))

	value, ok, err := store.Preference("initialLocalLM")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mistral", value)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SetPreference("k", "v"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	value, ok, err := store.Preference("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}
