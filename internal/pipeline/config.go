package pipeline

import (
	"fmt"
	"time"
)

// Config controls offloading, filtering, caching and compaction. Each stage
// can be switched off independently.
type Config struct {
	Offload    OffloadConfig    `mapstructure:"offload" yaml:"offload" json:"offload"`
	Filter     FilterConfig     `mapstructure:"filter" yaml:"filter" json:"filter"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache" json:"cache"`
	Compaction CompactionConfig `mapstructure:"compaction" yaml:"compaction" json:"compaction"`
}

type OffloadConfig struct {
	Enabled          bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MessageThreshold int  `mapstructure:"message_threshold" yaml:"message_threshold" json:"message_threshold"`
	KeepRecent       int  `mapstructure:"keep_recent" yaml:"keep_recent" json:"keep_recent"`
}

// FilterConfig caps retrieved context. A max of zero or less means no cap.
type FilterConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	LongTermMax      int      `mapstructure:"long_term_max" yaml:"long_term_max" json:"long_term_max"`
	LongTermMinScore *float64 `mapstructure:"long_term_min_score" yaml:"long_term_min_score" json:"long_term_min_score,omitempty"`
	ProcedureMax     int      `mapstructure:"procedure_max" yaml:"procedure_max" json:"procedure_max"`
	ShortTermRecent  int      `mapstructure:"short_term_recent" yaml:"short_term_recent" json:"short_term_recent"`
}

type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds" yaml:"ttl_seconds" json:"ttl_seconds"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type CompactionConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MaxCharsPerPart int  `mapstructure:"max_chars_per_part" yaml:"max_chars_per_part" json:"max_chars_per_part"`
	MaxTotalChars   int  `mapstructure:"max_total_chars" yaml:"max_total_chars" json:"max_total_chars"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Offload:    OffloadConfig{Enabled: true, MessageThreshold: 12, KeepRecent: 5},
		Filter:     FilterConfig{Enabled: true, LongTermMax: 5, ProcedureMax: 10, ShortTermRecent: 3},
		Cache:      CacheConfig{Enabled: true, TTLSeconds: 60},
		Compaction: CompactionConfig{Enabled: true, MaxCharsPerPart: 2800, MaxTotalChars: 9000},
	}
}

// Validate checks the settings of every enabled stage.
func (c *Config) Validate() error {
	if c.Offload.Enabled {
		if c.Offload.MessageThreshold <= 0 {
			return fmt.Errorf("offload message_threshold must be greater than 0, got %d", c.Offload.MessageThreshold)
		}
		if c.Offload.KeepRecent <= 0 {
			return fmt.Errorf("offload keep_recent must be greater than 0, got %d", c.Offload.KeepRecent)
		}
	}
	if c.Cache.Enabled && c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache ttl_seconds must be greater than 0, got %d", c.Cache.TTLSeconds)
	}
	if c.Compaction.Enabled {
		if c.Compaction.MaxCharsPerPart <= 0 || c.Compaction.MaxTotalChars <= 0 {
			return fmt.Errorf("compaction limits must be greater than 0, got %d/%d",
				c.Compaction.MaxCharsPerPart, c.Compaction.MaxTotalChars)
		}
	}
	return nil
}
