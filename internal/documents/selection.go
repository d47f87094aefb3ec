// Package documents tracks the documents surfaced by vector search and which
// of them are in retrieval scope.
package documents

import (
	"net/url"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Entry is a retrievable document.
type Entry struct {
	Filename string `json:"filename"`
	GUID     string `json:"guid"`
	Selected bool   `json:"selected"`
}

// NewEntry builds a selected entry from a raw object key, which vector
// search returns percent-encoded.
func NewEntry(objectKey, guid string) Entry {
	return Entry{Filename: DisplayName(objectKey), GUID: guid, Selected: true}
}

// DisplayName percent-decodes and normalises a filename for display.
// Keys that fail to decode are shown as-is.
func DisplayName(objectKey string) string {
	name, err := url.PathUnescape(objectKey)
	if err != nil {
		name = objectKey
	}
	return norm.NFC.String(name)
}

// Update is a batch of discovered documents: either one entry or many.
type Update struct {
	entries []Entry
}

// Single wraps one discovered document.
func Single(e Entry) Update { return Update{entries: []Entry{e}} }

// Many wraps a list of discovered documents.
func Many(entries []Entry) Update {
	return Update{entries: append([]Entry(nil), entries...)}
}

// Entries returns the documents carried by the update.
func (u Update) Entries() []Entry { return append([]Entry(nil), u.entries...) }

// Selection is the set of known documents, keyed by GUID, in discovery order.
//
// Merge policy: a GUID that is already known keeps its current selection
// state and filename; only new GUIDs are added, selected.
type Selection struct {
	mu       sync.Mutex
	entries  []Entry
	onChange func([]Entry)
	handler  uint64 // bumped on every OnChange
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// OnChange installs the single change handler, replacing any previous one.
// The returned func removes it again if it is still installed.
func (s *Selection) OnChange(fn func([]Entry)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
	s.handler++
	installed := s.handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.handler == installed {
			s.onChange = nil
		}
	}
}

// Entries returns a snapshot of all known documents.
func (s *Selection) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Selected returns the documents currently in retrieval scope.
func (s *Selection) Selected() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Selected {
			out = append(out, e)
		}
	}
	return out
}

// SelectedGUIDs returns the GUIDs of the selected documents.
func (s *Selection) SelectedGUIDs() []string {
	selected := s.Selected()
	guids := make([]string, len(selected))
	for i, e := range selected {
		guids[i] = e.GUID
	}
	return guids
}

// ReplaceAll sets the full selection set. Every entry starts selected;
// duplicate GUIDs keep their first occurrence.
func (s *Selection) ReplaceAll(entries []Entry) {
	s.mutate(func() {
		s.entries = nil
		for _, e := range entries {
			if s.indexOf(e.GUID) >= 0 {
				continue
			}
			e.Selected = true
			s.entries = append(s.entries, e)
		}
	})
}

// Merge adds entries whose GUID is not known yet.
func (s *Selection) Merge(entries []Entry) {
	s.mutate(func() {
		for _, e := range entries {
			if s.indexOf(e.GUID) >= 0 {
				continue
			}
			e.Selected = true
			s.entries = append(s.entries, e)
		}
	})
}

// Apply merges a discovery update.
func (s *Selection) Apply(u Update) {
	s.Merge(u.entries)
}

// Toggle flips the selection state of the entry at index. It reports
// whether the index existed.
func (s *Selection) Toggle(index int) bool {
	ok := false
	s.mutate(func() {
		ok = s.flip(index)
	})
	return ok
}

// ToggleGUID flips the selection state of the entry with guid.
func (s *Selection) ToggleGUID(guid string) bool {
	ok := false
	s.mutate(func() {
		ok = s.flip(s.indexOf(guid))
	})
	return ok
}

func (s *Selection) flip(i int) bool {
	if i < 0 || i >= len(s.entries) {
		return false
	}
	s.entries[i].Selected = !s.entries[i].Selected
	return true
}

// Clear forgets every document.
func (s *Selection) Clear() {
	s.mutate(func() { s.entries = nil })
}

// mutate applies fn under the lock and then notifies the change handler
// outside of it.
func (s *Selection) mutate(fn func()) {
	s.mu.Lock()
	fn()
	snapshot := s.snapshot()
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}

func (s *Selection) snapshot() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Selection) indexOf(guid string) int {
	for i, e := range s.entries {
		if e.GUID == guid {
			return i
		}
	}
	return -1
}
