package memory

import (
	"context"
	"log/slog"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/store"
)

// OffloadStore archives messages evicted from short-term memory.
type OffloadStore struct {
	db     *store.SQLiteStore
	logger *slog.Logger
}

func NewOffloadStore(db *store.SQLiteStore, logger *slog.Logger) *OffloadStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &OffloadStore{db: db, logger: logger}
}

// Offload writes one chunk. Nothing is written for an empty slice.
func (s *OffloadStore) Offload(ctx context.Context, userID, sessionID string, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	c, err := s.db.InsertOffloadChunk(ctx, store.OffloadParams{UserID: userID, SessionID: sessionID, Messages: msgs})
	if err != nil {
		return err
	}
	s.logger.Debug("context_offloaded", "user_id", userID, "session_id", sessionID, "chunk_id", c.ID, "messages", c.MessageCount)
	return nil
}

// Chunks returns a session's archived chunks, oldest first.
func (s *OffloadStore) Chunks(ctx context.Context, userID, sessionID string) ([]model.OffloadChunk, error) {
	return s.db.ListOffloadChunks(ctx, userID, sessionID)
}
