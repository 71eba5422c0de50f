package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/agent-context/internal/model"
)

// UpsertProcedure inserts a procedure or replaces the fields of the existing
// one with the same (user_id, name). The id and created_at of an existing
// procedure are preserved.
func (s *SQLiteStore) UpsertProcedure(ctx context.Context, d model.ProcedureDraft) (*model.Procedure, error) {
	if d.UserID == "" || d.Name == "" {
		return nil, fmt.Errorf("upsert procedure: user_id and name are required")
	}
	now := time.Now().UTC()
	steps := d.Steps
	if steps == nil {
		steps = []string{}
	}
	conditions := d.Conditions
	if conditions == nil {
		conditions = []string{}
	}
	var description interface{}
	if d.Description != "" {
		description = d.Description
	}

	p := &model.Procedure{
		UserID:      d.UserID,
		Name:        d.Name,
		Steps:       steps,
		Description: d.Description,
		Conditions:  conditions,
		Metadata:    orEmptyMap(d.Metadata),
	}

	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO procedures (id, user_id, name, steps, description, conditions, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, name) DO UPDATE SET
			steps = excluded.steps,
			description = excluded.description,
			conditions = excluded.conditions,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
		 RETURNING id, created_at`,
		s.newID(), d.UserID, d.Name, marshalJSON(steps), description, marshalJSON(conditions),
		marshalJSON(p.Metadata), formatTime(now), formatTime(now),
	).Scan(&p.ID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("upsert procedure: %w", err)
	}

	created := parseTime(createdAt)
	p.CreatedAt = &created
	p.UpdatedAt = &now
	return p, nil
}

// GetProcedure returns the procedure named name for a user, or ErrNotFound.
func (s *SQLiteStore) GetProcedure(ctx context.Context, userID, name string) (*model.Procedure, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, steps, description, conditions, metadata, created_at, updated_at
		 FROM procedures WHERE user_id = ? AND name = ?`, userID, name)
	p, err := scanProcedure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProcedures returns a user's procedures, most recently updated first.
// Without IncludeDocs only ID and Name are populated.
func (s *SQLiteStore) ListProcedures(ctx context.Context, p ListProceduresParams) ([]model.Procedure, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	cols := "id, name"
	if p.IncludeDocs {
		cols = "id, user_id, name, steps, description, conditions, metadata, created_at, updated_at"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cols+` FROM procedures WHERE user_id = ?
		 ORDER BY updated_at DESC, rowid DESC LIMIT ?`, p.UserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var procs []model.Procedure
	for rows.Next() {
		if !p.IncludeDocs {
			var proc model.Procedure
			if err := rows.Scan(&proc.ID, &proc.Name); err != nil {
				return nil, err
			}
			procs = append(procs, proc)
			continue
		}
		proc, err := scanProcedure(rows)
		if err != nil {
			return nil, err
		}
		procs = append(procs, proc)
	}
	return procs, rows.Err()
}

func scanProcedure(row scanner) (model.Procedure, error) {
	var p model.Procedure
	var steps, conditions, metadata, createdAt, updatedAt string
	var description *string

	err := row.Scan(&p.ID, &p.UserID, &p.Name, &steps, &description, &conditions, &metadata, &createdAt, &updatedAt)
	if err != nil {
		return p, err
	}

	if description != nil {
		p.Description = *description
	}
	json.Unmarshal([]byte(steps), &p.Steps)
	json.Unmarshal([]byte(conditions), &p.Conditions)
	json.Unmarshal([]byte(metadata), &p.Metadata)
	created, updated := parseTime(createdAt), parseTime(updatedAt)
	p.CreatedAt = &created
	p.UpdatedAt = &updated
	return p, nil
}
