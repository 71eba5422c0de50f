package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/agent-context/internal/model"
)

// InsertFact appends a fact. Duplicate text is allowed.
func (s *SQLiteStore) InsertFact(ctx context.Context, p FactParams) (*model.Fact, error) {
	now := time.Now().UTC()
	f := &model.Fact{
		ID:        s.newID(),
		UserID:    p.UserID,
		Text:      p.Text,
		Metadata:  orEmptyMap(p.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (id, user_id, text, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Text, marshalJSON(f.Metadata), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert fact: %w", err)
	}
	return f, nil
}

// ListFacts returns up to limit facts for a user, newest first.
func (s *SQLiteStore) ListFacts(ctx context.Context, userID string, limit int) ([]model.Fact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, text, metadata, created_at, updated_at
		 FROM facts WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var f model.Fact
		var metadata, createdAt, updatedAt string
		if err := rows.Scan(&f.ID, &f.UserID, &f.Text, &metadata, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(metadata), &f.Metadata)
		f.CreatedAt = parseTime(createdAt)
		f.UpdatedAt = parseTime(updatedAt)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
