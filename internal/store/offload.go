package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/agent-context/internal/model"
)

// InsertOffloadChunk archives messages evicted from a session.
func (s *SQLiteStore) InsertOffloadChunk(ctx context.Context, p OffloadParams) (*model.OffloadChunk, error) {
	now := time.Now().UTC()
	c := &model.OffloadChunk{
		ID:           s.newID(),
		UserID:       p.UserID,
		SessionID:    p.SessionID,
		Messages:     p.Messages,
		MessageCount: len(p.Messages),
		CreatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO offload_chunks (id, user_id, session_id, messages, message_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.SessionID, marshalJSON(c.Messages), c.MessageCount, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert offload chunk: %w", err)
	}
	return c, nil
}

// ListOffloadChunks returns a session's archived chunks, oldest first.
func (s *SQLiteStore) ListOffloadChunks(ctx context.Context, userID, sessionID string) ([]model.OffloadChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, messages, message_count, created_at
		 FROM offload_chunks WHERE user_id = ? AND session_id = ?
		 ORDER BY created_at, id`, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []model.OffloadChunk
	for rows.Next() {
		var c model.OffloadChunk
		var messages, createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.SessionID, &messages, &c.MessageCount, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
			return nil, fmt.Errorf("decode offload messages: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
