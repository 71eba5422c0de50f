package memory

import (
	"context"

	"github.com/rcliao/agent-context/internal/model"
)

// Index is a similarity search service partitioned by namespace and user.
// Implementations: vector.Index (embeddings) and store.TextIndex (keywords).
type Index interface {
	Add(ctx context.Context, namespace, userID string, doc model.SearchDoc) error
	Search(ctx context.Context, namespace, userID, query string, limit int) ([]model.SearchHit, error)
}
