package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath        string      `json:"db_path"`
	DBSizeBytes   int64       `json:"db_size_bytes"`
	Turns         int         `json:"turns"`
	Episodes      int         `json:"episodes"`
	Facts         int         `json:"facts"`
	Procedures    int         `json:"procedures"`
	OffloadChunks int         `json:"offload_chunks"`
	SearchDocs    int         `json:"search_docs"`
	Users         []UserStats `json:"users"`
}

// UserStats holds per-user turn counts.
type UserStats struct {
	UserID string `json:"user_id"`
	Turns  int    `json:"turns"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	counts := []struct {
		table string
		dst   *int
	}{
		{"turns", &st.Turns},
		{"episodes", &st.Episodes},
		{"facts", &st.Facts},
		{"procedures", &st.Procedures},
		{"offload_chunks", &st.OffloadChunks},
		{"search_docs", &st.SearchDocs},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return st, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) AS cnt
		FROM turns GROUP BY user_id ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var u UserStats
		rows.Scan(&u.UserID, &u.Turns)
		st.Users = append(st.Users, u)
	}

	return st, rows.Err()
}
