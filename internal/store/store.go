// Package store provides the durable SQLite backend for the memory tiers.
package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rcliao/agent-context/internal/model"
)

// ErrNotFound is returned when a single-record lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// TurnParams holds parameters for appending a long-term turn.
type TurnParams struct {
	UserID            string
	SessionID         string
	Messages          []model.Message
	ExtractedEntities map[string]any
	UserPreferences   map[string]any
	IntentHistory     []model.IntentPair
}

// EpisodeParams holds parameters for appending an episode.
type EpisodeParams struct {
	UserID    string
	SessionID string
	EventType string
	Content   json.RawMessage
	Summary   string
	Metadata  map[string]any
}

// EpisodeQuery filters episode listings. Zero values mean "no filter".
type EpisodeQuery struct {
	UserID    string
	SessionID string
	EventType string
	Since     time.Time
	Limit     int
}

// FactParams holds parameters for appending a fact.
type FactParams struct {
	UserID   string
	Text     string
	Metadata map[string]any
}

// ListProceduresParams holds parameters for listing procedures.
type ListProceduresParams struct {
	UserID      string
	Limit       int
	IncludeDocs bool
}

// OffloadParams holds parameters for archiving evicted messages.
type OffloadParams struct {
	UserID    string
	SessionID string
	Messages  []model.Message
}

// timeLayout is fixed width so that lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
