package store

import (
	"context"
	"fmt"

	"github.com/rcliao/agent-context/internal/model"
)

// Export is a user's durable records.
type Export struct {
	UserID     string            `json:"user_id"`
	Turns      []model.Turn      `json:"turns"`
	Episodes   []model.Episode   `json:"episodes"`
	Facts      []model.Fact      `json:"facts"`
	Procedures []model.Procedure `json:"procedures"`
}

const exportLimit = 1 << 20

// ExportUser returns every durable record stored for a user.
func (s *SQLiteStore) ExportUser(ctx context.Context, userID string) (*Export, error) {
	ex := &Export{UserID: userID}
	var err error

	if ex.Turns, err = s.RecentTurns(ctx, userID, exportLimit); err != nil {
		return nil, fmt.Errorf("export turns: %w", err)
	}
	if ex.Episodes, err = s.ListEpisodes(ctx, EpisodeQuery{UserID: userID, Limit: exportLimit}); err != nil {
		return nil, fmt.Errorf("export episodes: %w", err)
	}
	if ex.Facts, err = s.ListFacts(ctx, userID, exportLimit); err != nil {
		return nil, fmt.Errorf("export facts: %w", err)
	}
	if ex.Procedures, err = s.ListProcedures(ctx, ListProceduresParams{UserID: userID, Limit: exportLimit, IncludeDocs: true}); err != nil {
		return nil, fmt.Errorf("export procedures: %w", err)
	}
	return ex, nil
}
