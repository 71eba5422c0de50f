// Package contextcache is an advisory read-through cache for assembled
// context inputs. Failures are logged and behave as misses.
package contextcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// Backend stores raw values with an expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache namespaces keys as ctx:<prefix>:<part>:... and stores JSON values.
// A nil *Cache is a cache that always misses.
type Cache struct {
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
}

// New creates a cache. ttl <= 0 means 60 seconds.
func New(backend Backend, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{backend: backend, ttl: ttl, logger: logger}
}

// Key builds the backend key for prefix and parts.
func Key(prefix string, parts ...string) string {
	return "ctx:" + prefix + ":" + strings.Join(parts, ":")
}

// Get returns the cached JSON value.
func (c *Cache) Get(ctx context.Context, prefix string, parts ...string) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	key := Key(prefix, parts...)
	b, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Debug("cache_get_failed", "key", key, "error", err)
		return nil, false
	}
	if !ok || !json.Valid(b) {
		return nil, false
	}
	return json.RawMessage(b), true
}

// GetJSON decodes the cached value into dst. A value that does not decode is
// a miss.
func (c *Cache) GetJSON(ctx context.Context, dst any, prefix string, parts ...string) bool {
	raw, ok := c.Get(ctx, prefix, parts...)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Debug("cache_decode_failed", "key", Key(prefix, parts...), "error", err)
		return false
	}
	return true
}

// Set stores value as JSON with the cache TTL.
func (c *Cache) Set(ctx context.Context, prefix string, parts []string, value any) {
	if c == nil {
		return
	}
	key := Key(prefix, parts...)
	b, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug("cache_encode_failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, b, c.ttl); err != nil {
		c.logger.Debug("cache_set_failed", "key", key, "error", err)
	}
}

// Delete removes an entry.
func (c *Cache) Delete(ctx context.Context, prefix string, parts ...string) {
	if c == nil {
		return
	}
	key := Key(prefix, parts...)
	if err := c.backend.Delete(ctx, key); err != nil {
		c.logger.Debug("cache_delete_failed", "key", key, "error", err)
	}
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Fingerprint returns a stable 16 hex character digest of a message.
func Fingerprint(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])[:16]
}
