package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/store"
)

// ProceduralStore holds named procedures, unique per (user, name).
type ProceduralStore struct {
	db     *store.SQLiteStore
	logger *slog.Logger
}

func NewProceduralStore(db *store.SQLiteStore, logger *slog.Logger) *ProceduralStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProceduralStore{db: db, logger: logger}
}

// Add creates or replaces the procedure with the draft's name and returns its
// id. Replacing keeps the original id and creation time.
func (s *ProceduralStore) Add(ctx context.Context, d model.ProcedureDraft) (string, error) {
	if d.UserID == "" || d.Name == "" {
		return "", fmt.Errorf("%w: user_id and name are required", ErrInvalidArgument)
	}
	p, err := s.db.UpsertProcedure(ctx, d)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// Get returns the named procedure. A missing procedure is found == false with
// a nil error; a backend failure is returned as an error.
func (s *ProceduralStore) Get(ctx context.Context, userID, name string) (model.Procedure, bool, error) {
	p, err := s.db.GetProcedure(ctx, userID, name)
	if errors.Is(err, store.ErrNotFound) {
		return model.Procedure{}, false, nil
	}
	if err != nil {
		return model.Procedure{}, false, err
	}
	return *p, true, nil
}

// List returns procedures ordered by last update, newest first. Without
// includeDocs only id and name are set. Read failures yield an empty result.
func (s *ProceduralStore) List(ctx context.Context, userID string, limit int, includeDocs bool) ([]model.Procedure, error) {
	if userID == "" {
		return nil, nil
	}
	procs, err := s.db.ListProcedures(ctx, store.ListProceduresParams{UserID: userID, Limit: limit, IncludeDocs: includeDocs})
	if err != nil {
		s.logger.Warn("procedures_read_failed", "user_id", userID, "error", err)
		return nil, nil
	}
	return procs, nil
}
