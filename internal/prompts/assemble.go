package prompts

import (
	"strings"

	"RagChat/internal/backend"
	"RagChat/internal/retrieval"
	"RagChat/internal/session"
)

const (
	contextHeader = "Context from vector search:\n"
	queryTrailer  = "\n\nUser query: "
)

// Lookup resolves instructions by id.
type Lookup interface {
	Get(id string) (SystemInstruction, bool)
}

// Assemble builds the ordered messages for one model call: the effective
// system instruction, the prior history, then the newest human turn,
// prefixed with retrieved context when there is any.
//
// With no documents selected the "concise" router instruction replaces the
// active one, if the catalog has it.
func Assemble(
	history []session.Message,
	newHumanText string,
	results []retrieval.Result,
	active SystemInstruction,
	hasExplicitSelection bool,
	catalog Lookup,
) []backend.ChatMessage {
	system := active
	if !hasExplicitSelection && catalog != nil {
		if concise, ok := catalog.Get(ConciseID); ok {
			system = concise
		}
	}

	out := make([]backend.ChatMessage, 0, len(history)+2)
	out = append(out, backend.ChatMessage{Role: backend.RoleSystem, Content: system.Content})
	for _, m := range history {
		out = append(out, backend.ChatMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	out = append(out, backend.ChatMessage{Role: backend.RoleUser, Content: Augment(newHumanText, results)})
	return out
}

// Augment splices retrieval results ahead of the user's text. Without
// results the text is returned unchanged.
func Augment(text string, results []retrieval.Result) string {
	if len(results) == 0 {
		return text
	}
	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}
	return contextHeader + strings.Join(contents, "\n") + queryTrailer + text
}

func chatRole(role session.Role) string {
	if role == session.RoleAssistant {
		return backend.RoleAssistant
	}
	return backend.RoleUser
}
