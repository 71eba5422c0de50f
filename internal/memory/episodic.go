package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/store"
)

// EpisodeQuery filters episode listings.
type EpisodeQuery = store.EpisodeQuery

// EpisodicStore is an append-only event log.
type EpisodicStore struct {
	db     *store.SQLiteStore
	logger *slog.Logger
}

func NewEpisodicStore(db *store.SQLiteStore, logger *slog.Logger) *EpisodicStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &EpisodicStore{db: db, logger: logger}
}

// Add appends an episode and returns its id.
func (s *EpisodicStore) Add(ctx context.Context, ep model.Episode) (string, error) {
	if ep.UserID == "" {
		return "", fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	e, err := s.db.InsertEpisode(ctx, store.EpisodeParams{
		UserID:    ep.UserID,
		SessionID: ep.SessionID,
		EventType: ep.EventType,
		Content:   ep.Content,
		Summary:   ep.Summary,
		Metadata:  ep.Metadata,
	})
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

// List returns matching episodes, newest first. Read failures yield an empty
// result.
func (s *EpisodicStore) List(ctx context.Context, q EpisodeQuery) ([]model.Episode, error) {
	if q.UserID == "" {
		return nil, nil
	}
	episodes, err := s.db.ListEpisodes(ctx, q)
	if err != nil {
		s.logger.Warn("episodes_read_failed", "user_id", q.UserID, "error", err)
		return nil, nil
	}
	return episodes, nil
}
