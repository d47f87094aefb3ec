package prompts

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RagChat/internal/backend"
	"RagChat/internal/database"
	"RagChat/internal/retrieval"
	"RagChat/internal/session"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(NewMemoryRepository(), nil)
	require.NoError(t, err)
	return c
}

func TestCatalogSeedsBuiltins(t *testing.T) {
	c := newCatalog(t)

	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{DefaultID, ConciseID, CreativeID}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "Step Two", list[0].Name)
	assert.Equal(t, "Step One", list[1].Name)
	assert.True(t, strings.HasPrefix(list[1].Content, "# Document Router System Prompt"))
	assert.Contains(t, list[0].Content, "```markdown")

	// no stored preference: first entry is active
	assert.Equal(t, DefaultID, c.Active().ID)
}

func TestSetActive(t *testing.T) {
	repo := NewMemoryRepository()
	c, err := NewCatalog(repo, nil)
	require.NoError(t, err)

	assert.True(t, c.SetActive(CreativeID))
	assert.Equal(t, CreativeID, c.Active().ID)

	assert.False(t, c.SetActive("missing"))
	assert.Equal(t, CreativeID, c.Active().ID)

	// preference survives a reload
	reloaded, err := NewCatalog(repo, nil)
	require.NoError(t, err)
	assert.Equal(t, CreativeID, reloaded.Active().ID)
}

func TestStaleActivePreferenceFallsBack(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.SetActiveID("instruction-gone"))

	c, err := NewCatalog(repo, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultID, c.Active().ID)
}

func TestAdd(t *testing.T) {
	c := newCatalog(t)

	id, err := c.Add("Support", "You answer support questions.")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "instruction-"))

	got, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Support", got.Name)
	assert.Equal(t, id, c.List()[3].ID)

	other, err := c.Add("Other", "x")
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	for _, tc := range [][2]string{{"", "content"}, {"name", " "}} {
		_, err := c.Add(tc[0], tc[1])
		assert.True(t, errors.Is(err, ErrEmptyField))
	}
	assert.Len(t, c.List(), 5)
}

func TestUpdateActiveReflectsImmediately(t *testing.T) {
	c := newCatalog(t)
	require.True(t, c.SetActive(CreativeID))

	require.NoError(t, c.Update(CreativeID, "Playful", "Be playful."))
	assert.Equal(t, "Be playful.", c.Active().Content)
	assert.Equal(t, "Playful", c.Active().Name)

	err := c.Update("missing", "a", "b")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Len(t, c.List(), 3)
}

func TestStoreRepositoryRoundTrip(t *testing.T) {
	store, err := database.Open(filepath.Join(t.TempDir(), "ragchat.db"))
	require.NoError(t, err)
	defer store.Close()

	c, err := NewCatalog(NewStoreRepository(store), nil)
	require.NoError(t, err)
	id, err := c.Add("Support", "support text")
	require.NoError(t, err)
	require.NoError(t, c.Update(DefaultID, "Answer", "answer text"))
	require.True(t, c.SetActive(id))

	reloaded, err := NewCatalog(NewStoreRepository(store), nil)
	require.NoError(t, err)
	list := reloaded.List()
	require.Len(t, list, 4)
	assert.Equal(t, "answer text", list[0].Content)
	assert.Equal(t, id, list[3].ID)
	assert.Equal(t, id, reloaded.Active().ID)
}

func TestAssembleSystemFirst(t *testing.T) {
	c := newCatalog(t)
	active := c.Active()

	tests := []struct {
		name    string
		history []session.Message
	}{
		{"empty history", nil},
		{"with history", []session.Message{
			{ID: "1", Role: session.RoleHuman, Content: "hi"},
			{ID: "2", Role: session.RoleAssistant, Content: "hello"},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msgs := Assemble(tc.history, "next", nil, active, true, c)
			require.Len(t, msgs, len(tc.history)+2)

			systemCount := 0
			for _, m := range msgs {
				if m.Role == backend.RoleSystem {
					systemCount++
				}
			}
			assert.Equal(t, 1, systemCount)
			assert.Equal(t, backend.RoleSystem, msgs[0].Role)
			assert.Equal(t, active.Content, msgs[0].Content)
			assert.Equal(t, backend.ChatMessage{Role: backend.RoleUser, Content: "next"}, msgs[len(msgs)-1])
		})
	}
}

func TestAssembleMapsHistoryRoles(t *testing.T) {
	history := []session.Message{
		{ID: "1", Role: session.RoleHuman, Content: "q1"},
		{ID: "2", Role: session.RoleAssistant, Content: "a1"},
	}
	msgs := Assemble(history, "q2", nil, SystemInstruction{Content: "sys"}, true, nil)
	assert.Equal(t, []backend.ChatMessage{
		{Role: backend.RoleSystem, Content: "sys"},
		{Role: backend.RoleUser, Content: "q1"},
		{Role: backend.RoleAssistant, Content: "a1"},
		{Role: backend.RoleUser, Content: "q2"},
	}, msgs)
}

func TestAssembleConciseSubstitution(t *testing.T) {
	c := newCatalog(t)
	require.True(t, c.SetActive(CreativeID))
	concise, _ := c.Get(ConciseID)

	msgs := Assemble(nil, "q", nil, c.Active(), false, c)
	assert.Equal(t, concise.Content, msgs[0].Content)

	msgs = Assemble(nil, "q", nil, c.Active(), true, c)
	assert.Equal(t, c.Active().Content, msgs[0].Content)
}

func TestAssembleConciseMissingUsesActive(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.SaveInstruction(SystemInstruction{ID: "only", Name: "Only", Content: "only text"}, 0))
	c, err := NewCatalog(repo, nil)
	require.NoError(t, err)

	msgs := Assemble(nil, "q", nil, c.Active(), false, c)
	assert.Equal(t, "only text", msgs[0].Content)
}

func TestAssembleRouterScenario(t *testing.T) {
	c := newCatalog(t)
	concise, _ := c.Get(ConciseID)
	results := []retrieval.Result{{
		Content:      "The DL380a requires two 1600W power supplies.",
		DocumentGUID: "g1",
		ObjectKey:    "HPE%20DL380a.pdf",
		Distance:     0.2,
	}}

	msgs := Assemble(nil, "What is the power requirement?", results, c.Active(), false, c)
	require.Len(t, msgs, 2)
	assert.Equal(t, concise.Content, msgs[0].Content)

	last := msgs[1]
	assert.Equal(t, backend.RoleUser, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Context from vector search:\n"+results[0].Content))
	assert.True(t, strings.HasSuffix(last.Content, "User query: What is the power requirement?"))
}

func TestAugment(t *testing.T) {
	assert.Equal(t, "plain", Augment("plain", nil))
	assert.Equal(t,
		"Context from vector search:\nfirst\nsecond\n\nUser query: q",
		Augment("q", []retrieval.Result{{Content: "first"}, {Content: "second"}}),
	)
}
