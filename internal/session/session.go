package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrDuplicateID     = errors.New("duplicate message id")
)

// Message represents a single chat message
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Timestamp int64  `json:"timestamp"` // epoch millis
	Content   string `json:"content"`
	Model     string `json:"model,omitempty"` // assistant only
}

// UnmarshalJSON also accepts transcripts written by the browser client,
// which stored the role under "type" and called the assistant "ai".
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var p struct {
		plain
		Type Role `json:"type"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Role == "" {
		p.Role = p.Type
	}
	if p.Role == "ai" {
		p.Role = RoleAssistant
	}
	*m = Message(p.plain)
	return nil
}

// NewHumanMessage creates a human turn stamped with the current time.
func NewHumanMessage(content string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleHuman,
		Timestamp: time.Now().UnixMilli(),
		Content:   content,
	}
}

// NewAssistantMessage creates an assistant turn produced by model.
func NewAssistantMessage(content, model string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleAssistant,
		Timestamp: time.Now().UnixMilli(),
		Content:   content,
		Model:     model,
	}
}

// NewID returns an opaque message id.
func NewID() string {
	return uuid.NewString()
}

// Session holds the active conversation: its title, backing file and the
// ordered message list. All methods are safe for concurrent use.
type Session struct {
	ID        string
	StartTime time.Time

	mu       sync.RWMutex
	title    string
	filePath string
	messages []Message
}

// New creates an empty session.
func New() *Session {
	return &Session{
		ID:        fmt.Sprintf("session_%d", time.Now().Unix()),
		StartTime: time.Now(),
	}
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Title returns the conversation title, empty until one is assigned.
func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// FilePath returns the persisted location of the conversation, if any.
func (s *Session) FilePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filePath
}

// SetTitle records the conversation title and where it is persisted.
func (s *Session) SetTitle(title, filePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	s.filePath = filePath
}

// Append adds a message at the end of the transcript.
func (s *Session) Append(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.messages, msg.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}
	s.messages = append(s.messages, msg)
	return nil
}

// RemoveByID drops the message with the given id and returns the new list.
func (s *Session) RemoveByID(id string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.messages, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	filtered := make([]Message, 0, len(s.messages)-1)
	filtered = append(filtered, s.messages[:i]...)
	filtered = append(filtered, s.messages[i+1:]...)
	s.messages = filtered
	return cloneMessages(filtered), nil
}

// TruncateForRegeneration cuts the transcript back to the point a model
// call should be replayed from. A human target is kept; an assistant target
// is cut back to the human message right before it. The prefix becomes the
// active transcript and is returned.
func (s *Session) TruncateForRegeneration(id string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.messages, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	cut := RegenerationCut(s.messages, i)
	s.messages = cloneMessages(s.messages[:cut])
	return cloneMessages(s.messages), nil
}

// RegenerationCut returns the length of the prefix kept when regenerating
// from messages[i].
func RegenerationCut(messages []Message, i int) int {
	if messages[i].Role == RoleHuman {
		return i + 1
	}
	for j := i - 1; j >= 0; j-- {
		if messages[j].Role == RoleHuman {
			return j + 1
		}
	}
	return 0
}

// Replace swaps the whole transcript.
func (s *Session) Replace(messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = cloneMessages(messages)
}

// Reset clears the transcript and title for a new chat.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.title = ""
	s.filePath = ""
}

// ConversationFilename derives the file name a conversation is stored under:
// lower case, spaces to underscores, colons and path separators to dashes,
// quotes removed.
func ConversationFilename(title string) string {
	name := strings.ToLower(strings.TrimSpace(title))
	name = filenameReplacer.Replace(name)
	return name + ".json"
}

var filenameReplacer = strings.NewReplacer(
	" ", "_",
	":", "-",
	"/", "-",
	`\`, "-",
	`"`, "",
)

// CleanTitle trims a generated title and strips quotes.
func CleanTitle(title string) string {
	return strings.TrimSpace(strings.ReplaceAll(title, `"`, ""))
}

func indexOf(messages []Message, id string) int {
	for i, m := range messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func cloneMessages(messages []Message) []Message {
	if messages == nil {
		return []Message{}
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
