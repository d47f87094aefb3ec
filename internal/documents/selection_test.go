package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.GUID
	}
	return out
}

func TestReplaceAllDefaultsSelected(t *testing.T) {
	s := NewSelection()
	s.ReplaceAll([]Entry{
		{Filename: "a.pdf", GUID: "g1"},
		{Filename: "b.pdf", GUID: "g2", Selected: false},
		{Filename: "dup.pdf", GUID: "g1"},
	})

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a.pdf", entries[0].Filename)
	assert.True(t, entries[0].Selected)
	assert.True(t, entries[1].Selected)
}

func TestMergeKeepsExistingSelectionState(t *testing.T) {
	s := NewSelection()
	s.ReplaceAll([]Entry{{Filename: "a.pdf", GUID: "g1"}, {Filename: "b.pdf", GUID: "g2"}})
	require.True(t, s.Toggle(0))

	s.Merge([]Entry{
		{Filename: "renamed.pdf", GUID: "g1", Selected: true},
		{Filename: "c.pdf", GUID: "g3"},
		{Filename: "c-again.pdf", GUID: "g3"},
	})

	entries := s.Entries()
	assert.Equal(t, []string{"g1", "g2", "g3"}, guids(entries))
	assert.False(t, entries[0].Selected, "existing entry keeps its state")
	assert.Equal(t, "a.pdf", entries[0].Filename)
	assert.True(t, entries[2].Selected, "new entries start selected")
	assert.Equal(t, "c.pdf", entries[2].Filename)
}

func TestMergeNeverDuplicatesGUIDs(t *testing.T) {
	s := NewSelection()
	batches := [][]Entry{
		{{GUID: "x"}, {GUID: "y"}},
		{{GUID: "y"}, {GUID: "z"}, {GUID: "x"}},
		{{GUID: "z"}, {GUID: "z"}},
	}
	for _, b := range batches {
		s.Merge(b)
	}

	seen := map[string]bool{}
	for _, e := range s.Entries() {
		assert.False(t, seen[e.GUID], "duplicate guid %s", e.GUID)
		seen[e.GUID] = true
	}
	assert.Len(t, seen, 3)
}

func TestToggleFlipsExactlyOne(t *testing.T) {
	s := NewSelection()
	s.ReplaceAll([]Entry{{GUID: "g1"}, {GUID: "g2"}, {GUID: "g3"}})

	assert.True(t, s.ToggleGUID("g2"))
	assert.Equal(t, []string{"g1", "g3"}, guids(s.Selected()))
	assert.Equal(t, []string{"g1", "g3"}, s.SelectedGUIDs())

	assert.True(t, s.Toggle(1))
	assert.Equal(t, []string{"g1", "g2", "g3"}, guids(s.Selected()))

	assert.False(t, s.Toggle(5))
	assert.False(t, s.ToggleGUID("missing"))
}

func TestClear(t *testing.T) {
	s := NewSelection()
	s.ReplaceAll([]Entry{{GUID: "g1"}})
	s.Clear()
	assert.Empty(t, s.Entries())
	assert.Empty(t, s.Selected())
}

func TestApplyUpdateVariants(t *testing.T) {
	s := NewSelection()
	s.Apply(Single(NewEntry("Power%20Guide.pdf", "g1")))
	s.Apply(Many([]Entry{NewEntry("a.pdf", "g2"), NewEntry("b.pdf", "g1")}))

	entries := s.Entries()
	assert.Equal(t, []string{"g1", "g2"}, guids(entries))
	assert.Equal(t, "Power Guide.pdf", entries[0].Filename)
}

func TestOnChangeSingleSlot(t *testing.T) {
	s := NewSelection()

	var first, second int
	removeFirst := s.OnChange(func([]Entry) { first++ })
	s.Merge([]Entry{{GUID: "g1"}})

	removeSecond := s.OnChange(func(entries []Entry) {
		second++
		assert.Len(t, entries, 2)
	})
	s.Merge([]Entry{{GUID: "g2"}})

	// removing a replaced handler leaves the current one installed
	removeFirst()
	s.Toggle(0)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	removeSecond()
	s.Clear()
	assert.Equal(t, 2, second)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "HPE ProLiant DL380a.pdf", DisplayName("HPE%20ProLiant%20DL380a.pdf"))
	assert.Equal(t, "100%zz", DisplayName("100%zz"))
	// decomposed e + combining acute normalises to the composed form
	assert.Equal(t, "caf\u00e9.pdf", DisplayName("cafe\u0301.pdf"))
}
