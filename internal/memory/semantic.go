package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/store"
)

// SemanticStore holds facts: a durable table for listing plus a search index.
type SemanticStore struct {
	db        *store.SQLiteStore
	index     Index
	namespace string
	logger    *slog.Logger
}

func NewSemanticStore(db *store.SQLiteStore, index Index, cfg SemanticConfig, logger *slog.Logger) *SemanticStore {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticStore{db: db, index: index, namespace: cfg.Namespace, logger: logger}
}

// AddFact stores a fact. Empty user or text is a no-op. Indexing is
// best-effort once the durable insert succeeds.
func (s *SemanticStore) AddFact(ctx context.Context, userID, text string, metadata map[string]any) error {
	if userID == "" || text == "" {
		return nil
	}
	f, err := s.db.InsertFact(ctx, store.FactParams{UserID: userID, Text: text, Metadata: metadata})
	if err != nil {
		return err
	}
	if s.index == nil {
		return nil
	}
	doc := model.SearchDoc{
		ID:        f.ID,
		Text:      f.Text,
		Metadata:  map[string]string{"user_id": userID, "metadata": mustJSON(f.Metadata)},
		CreatedAt: f.CreatedAt,
	}
	if err := s.index.Add(ctx, s.namespace, userID, doc); err != nil {
		s.logger.Warn("fact_index_failed", "user_id", userID, "fact_id", f.ID, "error", err)
	}
	return nil
}

// Search finds facts similar to query. An empty query lists all facts.
func (s *SemanticStore) Search(ctx context.Context, userID, query string, limit int) ([]model.Fact, error) {
	if userID == "" {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return s.All(ctx, userID, limit)
	}
	if s.index == nil {
		return nil, fmt.Errorf("%w: fact search index not configured", ErrMisconfigured)
	}
	if limit <= 0 {
		limit = 10
	}
	hits, err := s.index.Search(ctx, s.namespace, userID, query, limit)
	if err != nil {
		if errors.Is(err, ErrMisconfigured) {
			return nil, err
		}
		s.logger.Warn("fact_search_failed", "user_id", userID, "error", err)
		return nil, nil
	}
	facts := make([]model.Fact, 0, len(hits))
	for _, h := range hits {
		score := h.Score
		f := model.Fact{
			ID:        h.ID,
			UserID:    userID,
			Text:      h.Text,
			Score:     &score,
			CreatedAt: h.CreatedAt,
			UpdatedAt: h.CreatedAt,
		}
		if raw, ok := h.Metadata["metadata"]; ok {
			if err := json.Unmarshal([]byte(raw), &f.Metadata); err != nil {
				s.logger.Debug("fact_metadata_decode_failed", "id", h.ID, "error", err)
			}
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// All returns a user's facts, newest first.
func (s *SemanticStore) All(ctx context.Context, userID string, limit int) ([]model.Fact, error) {
	if userID == "" {
		return nil, nil
	}
	facts, err := s.db.ListFacts(ctx, userID, limit)
	if err != nil {
		s.logger.Warn("facts_read_failed", "user_id", userID, "error", err)
		return nil, nil
	}
	return facts, nil
}
