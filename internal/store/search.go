package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rcliao/agent-context/internal/model"
)

// TextIndex is a keyword search index over the search_docs table, ranked by
// FTS5 bm25. Documents are partitioned by namespace and user.
type TextIndex struct {
	s *SQLiteStore
}

// NewTextIndex returns a keyword index sharing the store's database.
func NewTextIndex(s *SQLiteStore) *TextIndex {
	return &TextIndex{s: s}
}

// Add indexes doc, replacing any document with the same id in namespace.
func (x *TextIndex) Add(ctx context.Context, namespace, userID string, doc model.SearchDoc) error {
	if doc.ID == "" {
		doc.ID = x.s.newID()
	}
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	meta := doc.Metadata
	if meta == nil {
		meta = map[string]string{}
	}

	_, err := x.s.db.ExecContext(ctx,
		`INSERT INTO search_docs (id, ns, user_id, text, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ns, id) DO UPDATE SET
			user_id = excluded.user_id,
			text = excluded.text,
			metadata = excluded.metadata`,
		doc.ID, namespace, userID, doc.Text, marshalJSON(meta), formatTime(created))
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	return nil
}

// Search returns up to limit documents matching any query term, best first.
// Scores are in (0, 1).
func (x *TextIndex) Search(ctx context.Context, namespace, userID, query string, limit int) ([]model.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := x.s.db.QueryContext(ctx, `
		SELECT d.id, d.text, d.metadata, d.created_at, bm25(search_docs_fts) AS rank
		FROM search_docs_fts
		JOIN search_docs d ON d.rowid = search_docs_fts.rowid
		WHERE search_docs_fts MATCH ? AND d.ns = ? AND d.user_id = ?
		ORDER BY rank
		LIMIT ?`, match, namespace, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("search docs: %w", err)
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var h model.SearchHit
		var metadata, createdAt string
		var rank float64
		if err := rows.Scan(&h.ID, &h.Text, &metadata, &createdAt, &rank); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(metadata), &h.Metadata)
		h.CreatedAt = parseTime(createdAt)
		h.Score = bm25Score(rank)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// bm25 ranks are negative, lower is better.
func bm25Score(rank float64) float64 {
	r := -rank
	if r < 0 {
		r = 0
	}
	return r / (1 + r)
}

// ftsQuery turns free text into an FTS5 expression matching any term.
func ftsQuery(q string) string {
	terms := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]bool{}
	var quoted []string
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}
