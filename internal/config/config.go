// Package config loads the process configuration from an optional YAML file
// and AGENT_CONTEXT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rcliao/agent-context/internal/embedding"
	"github.com/rcliao/agent-context/internal/memory"
	"github.com/rcliao/agent-context/internal/pipeline"
)

// Index backends.
const (
	IndexAuto    = "auto"
	IndexVector  = "vector"
	IndexKeyword = "keyword"
)

// Cache backends.
const (
	CacheRedis = "redis"
	CacheLocal = "local"
	CacheNone  = "none"
)

// Config is the complete process configuration.
type Config struct {
	DBPath   string          `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
	Memory   memory.Config   `mapstructure:"memory" yaml:"memory" json:"memory"`
	Pipeline pipeline.Config `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Index    IndexConfig     `mapstructure:"index" yaml:"index" json:"index"`
	Cache    CacheConfig     `mapstructure:"cache" yaml:"cache" json:"cache"`
	Log      LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
}

// IndexConfig selects the search index behind long-term and semantic memory.
// "auto" uses the vector index when an embedding provider is configured and
// the SQLite keyword index otherwise.
type IndexConfig struct {
	Backend    string            `mapstructure:"backend" yaml:"backend" json:"backend"`
	VectorPath string            `mapstructure:"vector_path" yaml:"vector_path" json:"vector_path"`
	Embedding  embedding.Options `mapstructure:"embedding" yaml:"embedding" json:"embedding"`
}

// CacheConfig selects the context cache backend. URL defaults to the
// short-term Redis URL.
type CacheConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend" json:"backend"`
	URL      string `mapstructure:"url" yaml:"url" json:"url"`
	MaxBytes int64  `mapstructure:"max_bytes" yaml:"max_bytes" json:"max_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// DefaultDBPath returns ~/.agent-context/context.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agent-context", "context.db")
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		DBPath:   DefaultDBPath(),
		Memory:   memory.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Index:    IndexConfig{Backend: IndexAuto},
		Cache:    CacheConfig{Backend: CacheRedis, MaxBytes: 64 << 20},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
	c.Memory.ApplyDefaults()
	if c.Index.Backend == "" {
		c.Index.Backend = IndexAuto
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheRedis
	}
	if c.Cache.URL == "" {
		c.Cache.URL = c.Memory.ShortTerm.URL
	}
	if c.Cache.MaxBytes == 0 {
		c.Cache.MaxBytes = 64 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	switch c.Index.Backend {
	case IndexAuto, IndexKeyword:
	case IndexVector:
		if c.Index.Embedding.Provider == "" || c.Index.Embedding.Provider == "none" {
			return fmt.Errorf("index: vector backend requires an embedding provider")
		}
	default:
		return fmt.Errorf("index: unknown backend %q", c.Index.Backend)
	}
	switch c.Cache.Backend {
	case CacheRedis, CacheLocal, CacheNone:
	default:
		return fmt.Errorf("cache: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheLocal && c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache: max_bytes must be greater than 0, got %d", c.Cache.MaxBytes)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}
