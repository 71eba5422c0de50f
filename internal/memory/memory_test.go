package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/store"
)

func newTestDB(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestShortTerm(t *testing.T, maxMessages int) (*ShortTermStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewShortTermStore(ShortTermConfig{
		URL:         fmt.Sprintf("redis://%s/0", mr.Addr()),
		MaxMessages: maxMessages,
	}, nil)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

// countingIndex records calls and optionally fails them.
type countingIndex struct {
	Index
	mu       sync.Mutex
	adds     int
	searches int
	err      error
}

func (c *countingIndex) Add(ctx context.Context, namespace, userID string, doc model.SearchDoc) error {
	c.mu.Lock()
	c.adds++
	c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return c.Index.Add(ctx, namespace, userID, doc)
}

func (c *countingIndex) Search(ctx context.Context, namespace, userID, query string, limit int) ([]model.SearchHit, error) {
	c.mu.Lock()
	c.searches++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.Index.Search(ctx, namespace, userID, query, limit)
}

func newCountingIndex(db *store.SQLiteStore) *countingIndex {
	return &countingIndex{Index: store.NewTextIndex(db)}
}

func turnMessages(user, assistant string) []model.Message {
	return []model.Message{
		model.TextMessage(model.RoleUser, user),
		model.TextMessage(model.RoleAssistant, assistant),
	}
}

var errBoom = errors.New("boom")
