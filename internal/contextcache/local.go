package contextcache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalBackend is an in-process backend on ristretto, for single-process
// deployments without Redis.
type LocalBackend struct {
	cache *ristretto.Cache
}

// NewLocalBackend creates a backend bounded to maxBytes of values.
func NewLocalBackend(maxBytes int64) (*LocalBackend, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create local cache: %w", err)
	}
	return &LocalBackend{cache: c}, nil
}

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	return data, ok, nil
}

func (b *LocalBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !b.cache.SetWithTTL(key, value, int64(len(value)), ttl) {
		return fmt.Errorf("local cache rejected %q", key)
	}
	// make the write visible to the next Get
	b.cache.Wait()
	return nil
}

func (b *LocalBackend) Delete(_ context.Context, key string) error {
	b.cache.Del(key)
	return nil
}

func (b *LocalBackend) Close() error {
	b.cache.Close()
	return nil
}
