// Package model defines the core memory data types.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversational message. Content is raw JSON so a plain user
// string and a structured assistant payload share the same shape.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Intent  string          `json:"intent,omitempty"`
}

// TextMessage builds a message whose content is a JSON string.
func TextMessage(role, text string) Message {
	b, _ := json.Marshal(text)
	return Message{Role: role, Content: b}
}

// Text returns the content as a string: JSON strings verbatim, anything else
// as compact JSON.
func (m Message) Text() string {
	return ContentText(m.Content)
}

// ContentText renders raw JSON content as text.
func ContentText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// Session is the short-term record for one session. It is replaced wholesale
// on every save.
type Session struct {
	SessionID         string         `json:"session_id"`
	SessionContext    map[string]any `json:"session_context"`
	Messages          []Message      `json:"messages"`
	ConversationState map[string]any `json:"current_conversation_state"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// IntentPair records which intent a user message was classified as. It
// encodes as a two-element JSON array: [message, intent].
type IntentPair struct {
	Message string
	Intent  string
}

func (p IntentPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Message, p.Intent})
}

func (p *IntentPair) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("intent pair: %w", err)
	}
	if len(arr) > 0 {
		p.Message = arr[0]
	}
	if len(arr) > 1 {
		p.Intent = arr[1]
	}
	return nil
}

// Turn is the durable long-term record of one saved turn. Written once.
type Turn struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	SessionID         string         `json:"session_id"`
	Messages          []Message      `json:"messages"`
	ExtractedEntities map[string]any `json:"extracted_entities"`
	UserPreferences   map[string]any `json:"user_preferences"`
	IntentHistory     []IntentPair   `json:"intent_history"`
	CreatedAt         time.Time      `json:"created_at"`
}

// HistoryItem is a long-term result in a backend-neutral shape. Score is set
// only when the result came from a similarity search.
type HistoryItem struct {
	ID            string         `json:"id"`
	MemoryText    string         `json:"memory"`
	Metadata      map[string]any `json:"metadata"`
	IntentHistory []IntentPair   `json:"intent_history"`
	Messages      []Message      `json:"messages"`
	Score         *float64       `json:"score,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Episode is an append-only event.
type Episode struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	EventType string          `json:"event_type"`
	Content   json.RawMessage `json:"content"`
	Summary   string          `json:"summary,omitempty"`
	Metadata  map[string]any  `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// Fact is a semantic memory entry. Duplicates are allowed.
type Fact struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Text      string         `json:"memory"`
	Metadata  map[string]any `json:"metadata"`
	Score     *float64       `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Procedure is a named, ordered list of steps, unique per (user, name).
// Lightweight listings only populate ID and Name.
type Procedure struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id,omitempty"`
	Name        string         `json:"name"`
	Steps       []string       `json:"steps,omitempty"`
	Description string         `json:"description,omitempty"`
	Conditions  []string       `json:"conditions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

// ProcedureDraft is the input for creating or replacing a procedure.
type ProcedureDraft struct {
	UserID      string         `json:"user_id,omitempty"`
	Name        string         `json:"name"`
	Steps       []string       `json:"steps"`
	Description string         `json:"description,omitempty"`
	Conditions  []string       `json:"conditions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// OffloadChunk archives messages evicted from short-term memory.
type OffloadChunk struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	Messages     []Message `json:"messages"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchDoc is a projection written to a search index. Metadata values are
// strings; structured values are stored JSON-encoded.
type SearchDoc struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// SearchHit is a search index result, best match first.
type SearchHit struct {
	SearchDoc
	Score float64 `json:"score"`
}
