package memory

import (
	"fmt"
	"time"
)

// Config configures every tier.
type Config struct {
	ShortTerm  ShortTermConfig `mapstructure:"short_term" yaml:"short_term" json:"short_term"`
	LongTerm   LongTermConfig  `mapstructure:"long_term" yaml:"long_term" json:"long_term"`
	Semantic   SemanticConfig  `mapstructure:"semantic" yaml:"semantic" json:"semantic"`
	Episodic   TierConfig      `mapstructure:"episodic" yaml:"episodic" json:"episodic"`
	Procedural TierConfig      `mapstructure:"procedural" yaml:"procedural" json:"procedural"`
	Offload    TierConfig      `mapstructure:"offload" yaml:"offload" json:"offload"`
}

// DefaultConfig returns a config with every tier enabled.
func DefaultConfig() Config {
	c := Config{
		Semantic:   SemanticConfig{Enabled: true},
		Episodic:   TierConfig{Enabled: true},
		Procedural: TierConfig{Enabled: true},
		Offload:    TierConfig{Enabled: true},
	}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	c.ShortTerm.ApplyDefaults()
	c.LongTerm.ApplyDefaults()
	c.Semantic.ApplyDefaults()
}

// Validate performs validation on the Config.
func (c *Config) Validate() error {
	if err := c.ShortTerm.Validate(); err != nil {
		return fmt.Errorf("short_term: %w", err)
	}
	if err := c.LongTerm.Validate(); err != nil {
		return fmt.Errorf("long_term: %w", err)
	}
	return nil
}

// TierConfig toggles a best-effort tier. A disabled tier is a no-op.
type TierConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// ShortTermConfig configures the Redis session buffer.
type ShortTermConfig struct {
	URL         string `mapstructure:"url" yaml:"url" json:"url"`
	TTLSeconds  int    `mapstructure:"ttl_seconds" yaml:"ttl_seconds" json:"ttl_seconds"`
	MaxMessages int    `mapstructure:"max_messages" yaml:"max_messages" json:"max_messages"`
	KeyPrefix   string `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
}

// ApplyDefaults applies default values to unset fields.
func (c *ShortTermConfig) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "redis://localhost:6379/0"
	}
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 1800
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = 20
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "agent:short"
	}
}

// Validate performs validation on the ShortTermConfig.
func (c *ShortTermConfig) Validate() error {
	if c.TTLSeconds <= 0 {
		return fmt.Errorf("ttl_seconds must be greater than 0, got %d", c.TTLSeconds)
	}
	if c.MaxMessages <= 0 {
		return fmt.Errorf("max_messages must be greater than 0, got %d", c.MaxMessages)
	}
	return nil
}

// TTL returns the session expiry.
func (c ShortTermConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LongTermConfig configures the turn log and its search projection.
type LongTermConfig struct {
	Namespace      string `mapstructure:"namespace" yaml:"namespace" json:"namespace"`
	DefaultLimit   int    `mapstructure:"default_limit" yaml:"default_limit" json:"default_limit"`
	DiagnosticUser string `mapstructure:"diagnostic_user" yaml:"diagnostic_user" json:"diagnostic_user"`
}

// ApplyDefaults applies default values to unset fields.
func (c *LongTermConfig) ApplyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "long_term"
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 5
	}
	if c.DiagnosticUser == "" {
		c.DiagnosticUser = "__diagnostic__"
	}
}

// Validate performs validation on the LongTermConfig.
func (c *LongTermConfig) Validate() error {
	if c.DefaultLimit < 0 {
		return fmt.Errorf("default_limit cannot be negative, got %d", c.DefaultLimit)
	}
	return nil
}

// SemanticConfig configures the fact tier.
type SemanticConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace" json:"namespace"`
}

// ApplyDefaults applies default values to unset fields.
func (c *SemanticConfig) ApplyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "facts"
	}
}
