// Package vector provides a similarity search index on chromem-go.
package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/rcliao/agent-context/internal/embedding"
	"github.com/rcliao/agent-context/internal/model"
)

const createdAtKey = "_created_at"

// Index stores documents in one chromem collection per (namespace, user).
// Safe for concurrent use.
type Index struct {
	db       *chromem.DB
	embedder embedding.Embedder

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates an in-memory index. If path is non-empty the index is
// persisted under that directory.
func New(path string, embedder embedding.Embedder) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vector index: embedder is required")
	}
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	}
	return &Index{
		db:          db,
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	return x.embedder.Embed(ctx, text)
}

func collectionName(namespace, userID string) string {
	return namespace + "__" + userID
}

func (x *Index) collection(namespace, userID string) (*chromem.Collection, error) {
	name := collectionName(namespace, userID)

	x.mu.RLock()
	col, ok := x.collections[name]
	x.mu.RUnlock()
	if ok {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if col, ok := x.collections[name]; ok {
		return col, nil
	}
	col, err := x.db.GetOrCreateCollection(name, map[string]string{"namespace": namespace, "user_id": userID}, x.embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	x.collections[name] = col
	return col, nil
}

// Add embeds and stores doc, replacing any document with the same id.
func (x *Index) Add(ctx context.Context, namespace, userID string, doc model.SearchDoc) error {
	col, err := x.collection(namespace, userID)
	if err != nil {
		return err
	}
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	meta := make(map[string]string, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[createdAtKey] = created.UTC().Format(time.RFC3339Nano)

	err = col.AddDocument(ctx, chromem.Document{
		ID:       doc.ID,
		Content:  doc.Text,
		Metadata: meta,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Search returns up to limit documents most similar to query.
func (x *Index) Search(ctx context.Context, namespace, userID, query string, limit int) ([]model.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	col, err := x.collection(namespace, userID)
	if err != nil {
		return nil, err
	}
	// chromem rejects nResults larger than the collection.
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}

	results, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(results))
	for _, r := range results {
		meta := make(map[string]string, len(r.Metadata))
		var created time.Time
		for k, v := range r.Metadata {
			if k == createdAtKey {
				created, _ = time.Parse(time.RFC3339Nano, v)
				continue
			}
			meta[k] = v
		}
		hits = append(hits, model.SearchHit{
			SearchDoc: model.SearchDoc{ID: r.ID, Text: r.Content, Metadata: meta, CreatedAt: created},
			Score:     float64(r.Similarity),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}
