package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/store"
)

// TurnInput is one turn to append to long-term history.
type TurnInput = store.TurnParams

// LongTermStore is conversation history backed by the durable turn log and a
// search projection of the same turns. The log is authoritative.
type LongTermStore struct {
	db     *store.SQLiteStore
	index  Index
	cfg    LongTermConfig
	logger *slog.Logger
}

// NewLongTermStore creates a store. A nil index leaves search unavailable:
// saves still reach the log but non-empty queries fail with ErrMisconfigured.
func NewLongTermStore(db *store.SQLiteStore, index Index, cfg LongTermConfig, logger *slog.Logger) *LongTermStore {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &LongTermStore{db: db, index: index, cfg: cfg, logger: logger}
}

// Save appends the turn to the log, then indexes it. Empty turns are ignored.
// Index failures are logged and do not fail the save.
func (s *LongTermStore) Save(ctx context.Context, in TurnInput) error {
	if len(in.Messages) == 0 {
		return nil
	}
	turn, err := s.db.InsertTurn(ctx, in)
	if err != nil {
		return err
	}

	if s.index == nil {
		s.logger.Warn("long_term_index_skipped", "user_id", in.UserID, "turn_id", turn.ID, "reason", "no index configured")
		return nil
	}
	if err := s.index.Add(ctx, s.cfg.Namespace, in.UserID, turnDoc(turn)); err != nil {
		s.logger.Warn("long_term_index_failed", "user_id", in.UserID, "turn_id", turn.ID, "error", err)
	}
	return nil
}

// Relevant returns history for a user. A non-empty query is a similarity
// search; an empty query returns the most recent turns. Backend failures
// yield an empty result.
func (s *LongTermStore) Relevant(ctx context.Context, userID, query string, limit int) ([]model.HistoryItem, error) {
	if userID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	if strings.TrimSpace(query) == "" {
		turns, err := s.db.RecentTurns(ctx, userID, limit)
		if err != nil {
			s.logger.Warn("long_term_read_failed", "user_id", userID, "error", err)
			return nil, nil
		}
		items := make([]model.HistoryItem, 0, len(turns))
		for _, t := range turns {
			items = append(items, turnItem(t))
		}
		return items, nil
	}

	if s.index == nil {
		return nil, fmt.Errorf("%w: long-term search index not configured", ErrMisconfigured)
	}
	hits, err := s.index.Search(ctx, s.cfg.Namespace, userID, query, limit)
	if err != nil {
		if errors.Is(err, ErrMisconfigured) {
			return nil, err
		}
		s.logger.Warn("long_term_search_failed", "user_id", userID, "error", err)
		return nil, nil
	}
	items := make([]model.HistoryItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, s.hitItem(h))
	}
	return items, nil
}

// All returns the most recent turns for a user.
func (s *LongTermStore) All(ctx context.Context, userID string, limit int) ([]model.HistoryItem, error) {
	return s.Relevant(ctx, userID, "", limit)
}

// Count returns how many turns a user has stored.
func (s *LongTermStore) Count(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	return s.db.CountTurns(ctx, userID)
}

// Diagnose writes and searches a diagnostic document to check the index end to end.
func (s *LongTermStore) Diagnose(ctx context.Context) error {
	if s.index == nil {
		return fmt.Errorf("%w: long-term search index not configured", ErrMisconfigured)
	}
	doc := model.SearchDoc{
		ID:        "diagnostic",
		Text:      "diagnostic probe document",
		Metadata:  map[string]string{"session_id": "diagnostic"},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.index.Add(ctx, s.cfg.Namespace, s.cfg.DiagnosticUser, doc); err != nil {
		return fmt.Errorf("index add: %w", err)
	}
	if _, err := s.index.Search(ctx, s.cfg.Namespace, s.cfg.DiagnosticUser, "diagnostic probe", 1); err != nil {
		return fmt.Errorf("index search: %w", err)
	}
	return nil
}

func turnText(msgs []model.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Role+": "+m.Text())
	}
	return strings.Join(lines, "\n")
}

// turnDoc projects a turn into the index under the turn's id.
func turnDoc(t *model.Turn) model.SearchDoc {
	return model.SearchDoc{
		ID:   t.ID,
		Text: turnText(t.Messages),
		Metadata: map[string]string{
			"user_id":            t.UserID,
			"session_id":         t.SessionID,
			"intent_history":     mustJSON(t.IntentHistory),
			"extracted_entities": mustJSON(t.ExtractedEntities),
			"user_preferences":   mustJSON(t.UserPreferences),
			"messages":           mustJSON(t.Messages),
		},
		CreatedAt: t.CreatedAt,
	}
}

func turnItem(t model.Turn) model.HistoryItem {
	return model.HistoryItem{
		ID:         t.ID,
		MemoryText: turnText(t.Messages),
		Metadata: map[string]any{
			"session_id":         t.SessionID,
			"extracted_entities": t.ExtractedEntities,
			"user_preferences":   t.UserPreferences,
		},
		IntentHistory: t.IntentHistory,
		Messages:      t.Messages,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.CreatedAt,
	}
}

func (s *LongTermStore) hitItem(h model.SearchHit) model.HistoryItem {
	score := h.Score
	item := model.HistoryItem{
		ID:         h.ID,
		MemoryText: h.Text,
		Metadata:   map[string]any{"session_id": h.Metadata["session_id"]},
		Score:      &score,
		CreatedAt:  h.CreatedAt,
		UpdatedAt:  h.CreatedAt,
	}
	s.decodeMeta(h, "intent_history", &item.IntentHistory)
	s.decodeMeta(h, "messages", &item.Messages)
	for _, k := range []string{"extracted_entities", "user_preferences"} {
		var v map[string]any
		if s.decodeMeta(h, k, &v) {
			item.Metadata[k] = v
		}
	}
	return item
}

// decodeMeta decodes a JSON-encoded metadata value of a hit. Missing keys
// are skipped; undecodable ones are logged.
func (s *LongTermStore) decodeMeta(h model.SearchHit, key string, dst any) bool {
	raw, ok := h.Metadata[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Debug("history_metadata_decode_failed", "id", h.ID, "key", key, "error", err)
		return false
	}
	return true
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
