package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// AGENT_CONTEXT_PIPELINE_CACHE_TTL_SECONDS.
const EnvPrefix = "AGENT_CONTEXT"

// Load reads the YAML file at path when it is non-empty, applies environment
// overrides and validates the result. A missing file is an error; an empty
// path means defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.BindEnv("pipeline.filter.long_term_min_score")
	v.BindEnv("cache.url")
	v.BindEnv("index.vector_path")
	v.BindEnv("index.embedding.provider")
	v.BindEnv("index.embedding.model")
	v.BindEnv("index.embedding.url")
	v.BindEnv("index.embedding.dims")
	v.BindEnv("index.embedding.api_key", EnvPrefix+"_INDEX_EMBEDDING_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("db_path", d.DBPath)

	st := d.Memory.ShortTerm
	v.SetDefault("memory.short_term.url", st.URL)
	v.SetDefault("memory.short_term.ttl_seconds", st.TTLSeconds)
	v.SetDefault("memory.short_term.max_messages", st.MaxMessages)
	v.SetDefault("memory.short_term.key_prefix", st.KeyPrefix)
	lt := d.Memory.LongTerm
	v.SetDefault("memory.long_term.namespace", lt.Namespace)
	v.SetDefault("memory.long_term.default_limit", lt.DefaultLimit)
	v.SetDefault("memory.long_term.diagnostic_user", lt.DiagnosticUser)
	v.SetDefault("memory.semantic.enabled", d.Memory.Semantic.Enabled)
	v.SetDefault("memory.semantic.namespace", d.Memory.Semantic.Namespace)
	v.SetDefault("memory.episodic.enabled", d.Memory.Episodic.Enabled)
	v.SetDefault("memory.procedural.enabled", d.Memory.Procedural.Enabled)
	v.SetDefault("memory.offload.enabled", d.Memory.Offload.Enabled)

	p := d.Pipeline
	v.SetDefault("pipeline.offload.enabled", p.Offload.Enabled)
	v.SetDefault("pipeline.offload.message_threshold", p.Offload.MessageThreshold)
	v.SetDefault("pipeline.offload.keep_recent", p.Offload.KeepRecent)
	v.SetDefault("pipeline.filter.enabled", p.Filter.Enabled)
	v.SetDefault("pipeline.filter.long_term_max", p.Filter.LongTermMax)
	v.SetDefault("pipeline.filter.procedure_max", p.Filter.ProcedureMax)
	v.SetDefault("pipeline.filter.short_term_recent", p.Filter.ShortTermRecent)
	v.SetDefault("pipeline.cache.enabled", p.Cache.Enabled)
	v.SetDefault("pipeline.cache.ttl_seconds", p.Cache.TTLSeconds)
	v.SetDefault("pipeline.compaction.enabled", p.Compaction.Enabled)
	v.SetDefault("pipeline.compaction.max_chars_per_part", p.Compaction.MaxCharsPerPart)
	v.SetDefault("pipeline.compaction.max_total_chars", p.Compaction.MaxTotalChars)

	v.SetDefault("index.backend", d.Index.Backend)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.max_bytes", d.Cache.MaxBytes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
