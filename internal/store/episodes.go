package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/agent-context/internal/model"
)

// InsertEpisode appends an episode.
func (s *SQLiteStore) InsertEpisode(ctx context.Context, p EpisodeParams) (*model.Episode, error) {
	now := time.Now().UTC()
	content := p.Content
	if len(content) == 0 {
		content = json.RawMessage("null")
	}
	e := &model.Episode{
		ID:        s.newID(),
		UserID:    p.UserID,
		SessionID: p.SessionID,
		EventType: p.EventType,
		Content:   content,
		Summary:   p.Summary,
		Metadata:  orEmptyMap(p.Metadata),
		CreatedAt: now,
	}

	var summary interface{}
	if p.Summary != "" {
		summary = p.Summary
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (id, user_id, session_id, event_type, content, summary, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.SessionID, e.EventType, string(content), summary, marshalJSON(e.Metadata), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert episode: %w", err)
	}
	return e, nil
}

// ListEpisodes returns a user's episodes matching q, newest first.
func (s *SQLiteStore) ListEpisodes(ctx context.Context, q EpisodeQuery) ([]model.Episode, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"user_id = ?"}
	args := []interface{}{q.UserID}

	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, q.EventType)
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(q.Since))
	}
	args = append(args, limit)

	query := `SELECT id, user_id, session_id, event_type, content, summary, metadata, created_at
	          FROM episodes WHERE ` + strings.Join(where, " AND ") + `
	          ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []model.Episode
	for rows.Next() {
		var e model.Episode
		var content, metadata, createdAt string
		var summary *string
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.EventType, &content, &summary, &metadata, &createdAt); err != nil {
			return nil, err
		}
		e.Content = json.RawMessage(content)
		if summary != nil {
			e.Summary = *summary
		}
		json.Unmarshal([]byte(metadata), &e.Metadata)
		e.CreatedAt = parseTime(createdAt)
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}
