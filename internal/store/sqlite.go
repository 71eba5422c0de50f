package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/agent-context/internal/model"
)

// SQLiteStore is the durable backend for turns, episodes, facts, procedures,
// offload chunks and the keyword search index. Safe for concurrent use.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) newID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id                 TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL,
		session_id         TEXT NOT NULL,
		messages           TEXT NOT NULL,
		extracted_entities TEXT NOT NULL DEFAULT '{}',
		user_preferences   TEXT NOT NULL DEFAULT '{}',
		intent_history     TEXT NOT NULL DEFAULT '[]',
		created_at         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_user_created ON turns(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS episodes (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		content    TEXT NOT NULL,
		summary    TEXT,
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_episodes_user_created ON episodes(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_episodes_session ON episodes(user_id, session_id);

	CREATE TABLE IF NOT EXISTS facts (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		text       TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_facts_user_created ON facts(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS procedures (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		name        TEXT NOT NULL,
		steps       TEXT NOT NULL DEFAULT '[]',
		description TEXT,
		conditions  TEXT NOT NULL DEFAULT '[]',
		metadata    TEXT NOT NULL DEFAULT '{}',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_procedures_user_name ON procedures(user_id, name);
	CREATE INDEX IF NOT EXISTS idx_procedures_updated ON procedures(user_id, updated_at DESC);

	CREATE TABLE IF NOT EXISTS offload_chunks (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		session_id    TEXT NOT NULL,
		messages      TEXT NOT NULL,
		message_count INTEGER NOT NULL,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_offload_session ON offload_chunks(user_id, session_id);

	CREATE TABLE IF NOT EXISTS search_docs (
		id         TEXT NOT NULL,
		ns         TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		text       TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		PRIMARY KEY (ns, id)
	);
	CREATE INDEX IF NOT EXISTS idx_search_docs_user ON search_docs(ns, user_id, created_at DESC);

	CREATE VIRTUAL TABLE IF NOT EXISTS search_docs_fts USING fts5(
		text,
		content=search_docs,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 triggers keep the keyword index in sync with search_docs.
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS search_docs_ai AFTER INSERT ON search_docs BEGIN
			INSERT INTO search_docs_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS search_docs_ad AFTER DELETE ON search_docs BEGIN
			INSERT INTO search_docs_fts(search_docs_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS search_docs_au AFTER UPDATE ON search_docs BEGIN
			INSERT INTO search_docs_fts(search_docs_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			INSERT INTO search_docs_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
	}
	for _, t := range triggers {
		if _, err := s.db.Exec(t); err != nil {
			return fmt.Errorf("create trigger: %w", err)
		}
	}

	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertTurn appends one immutable long-term turn.
func (s *SQLiteStore) InsertTurn(ctx context.Context, p TurnParams) (*model.Turn, error) {
	now := time.Now().UTC()
	t := &model.Turn{
		ID:                s.newID(),
		UserID:            p.UserID,
		SessionID:         p.SessionID,
		Messages:          p.Messages,
		ExtractedEntities: orEmptyMap(p.ExtractedEntities),
		UserPreferences:   orEmptyMap(p.UserPreferences),
		IntentHistory:     p.IntentHistory,
		CreatedAt:         now,
	}
	if t.IntentHistory == nil {
		t.IntentHistory = []model.IntentPair{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, user_id, session_id, messages, extracted_entities, user_preferences, intent_history, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.SessionID, marshalJSON(t.Messages), marshalJSON(t.ExtractedEntities),
		marshalJSON(t.UserPreferences), marshalJSON(t.IntentHistory), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}
	return t, nil
}

// RecentTurns returns up to limit turns for a user, newest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, userID string, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, messages, extracted_entities, user_preferences, intent_history, created_at
		 FROM turns WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// CountTurns returns the number of stored turns for a user.
func (s *SQLiteStore) CountTurns(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTurn(row scanner) (model.Turn, error) {
	var t model.Turn
	var messages, entities, prefs, intents, createdAt string

	err := row.Scan(&t.ID, &t.UserID, &t.SessionID, &messages, &entities, &prefs, &intents, &createdAt)
	if err != nil {
		return t, err
	}

	t.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(messages), &t.Messages); err != nil {
		return t, fmt.Errorf("decode turn messages: %w", err)
	}
	json.Unmarshal([]byte(entities), &t.ExtractedEntities)
	json.Unmarshal([]byte(prefs), &t.UserPreferences)
	json.Unmarshal([]byte(intents), &t.IntentHistory)

	return t, nil
}
