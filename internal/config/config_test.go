package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Memory.ShortTerm.URL)
	assert.Equal(t, 1800, cfg.Memory.ShortTerm.TTLSeconds)
	assert.True(t, cfg.Memory.Episodic.Enabled)
	assert.True(t, cfg.Memory.Offload.Enabled)

	assert.True(t, cfg.Pipeline.Offload.Enabled)
	assert.Equal(t, 12, cfg.Pipeline.Offload.MessageThreshold)
	assert.Equal(t, 5, cfg.Pipeline.Offload.KeepRecent)
	assert.Equal(t, 5, cfg.Pipeline.Filter.LongTermMax)
	assert.Nil(t, cfg.Pipeline.Filter.LongTermMinScore)
	assert.Equal(t, 10, cfg.Pipeline.Filter.ProcedureMax)
	assert.Equal(t, 3, cfg.Pipeline.Filter.ShortTermRecent)
	assert.Equal(t, 60, cfg.Pipeline.Cache.TTLSeconds)
	assert.Equal(t, 2800, cfg.Pipeline.Compaction.MaxCharsPerPart)
	assert.Equal(t, 9000, cfg.Pipeline.Compaction.MaxTotalChars)

	assert.Equal(t, IndexAuto, cfg.Index.Backend)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, cfg.Memory.ShortTerm.URL, cfg.Cache.URL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/agent.db
memory:
  short_term:
    url: redis://cache:6379/2
  procedural:
    enabled: false
pipeline:
  filter:
    long_term_min_score: 0.4
  compaction:
    enabled: false
index:
  backend: vector
  embedding:
    provider: hash
    dims: 64
cache:
  backend: local
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/agent.db", cfg.DBPath)
	assert.Equal(t, "redis://cache:6379/2", cfg.Memory.ShortTerm.URL)
	assert.Equal(t, 20, cfg.Memory.ShortTerm.MaxMessages, "unset keys keep defaults")
	assert.False(t, cfg.Memory.Procedural.Enabled)
	assert.True(t, cfg.Memory.Episodic.Enabled)
	require.NotNil(t, cfg.Pipeline.Filter.LongTermMinScore)
	assert.InDelta(t, 0.4, *cfg.Pipeline.Filter.LongTermMinScore, 1e-9)
	assert.False(t, cfg.Pipeline.Compaction.Enabled)
	assert.True(t, cfg.Pipeline.Filter.Enabled)
	assert.Equal(t, IndexVector, cfg.Index.Backend)
	assert.Equal(t, "hash", cfg.Index.Embedding.Provider)
	assert.Equal(t, 64, cfg.Index.Embedding.Dims)
	assert.Equal(t, CacheLocal, cfg.Cache.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("AGENT_CONTEXT_DB_PATH", "/data/env.db")
	t.Setenv("AGENT_CONTEXT_PIPELINE_CACHE_ENABLED", "false")
	t.Setenv("AGENT_CONTEXT_PIPELINE_OFFLOAD_KEEP_RECENT", "7")
	t.Setenv("AGENT_CONTEXT_MEMORY_SEMANTIC_ENABLED", "false")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/env.db", cfg.DBPath)
	assert.False(t, cfg.Pipeline.Cache.Enabled)
	assert.Equal(t, 7, cfg.Pipeline.Offload.KeepRecent)
	assert.False(t, cfg.Memory.Semantic.Enabled)
	assert.Equal(t, "sk-test", cfg.Index.Embedding.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("AGENT_CONTEXT_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"unknown index", "index:\n  backend: graph\n"},
		{"vector without embedder", "index:\n  backend: vector\n"},
		{"unknown cache", "cache:\n  backend: memcached\n"},
		{"bad keep_recent", "pipeline:\n  offload:\n    keep_recent: -1\n"},
		{"bad ttl", "memory:\n  short_term:\n    ttl_seconds: -5\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
