// Package config provides configuration loading for thinkd.
package config

import (
	"fmt"
	"time"
)

// Config is the complete thinkd configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	History  HistoryConfig  `koanf:"history"`
	Thinking ThinkingConfig `koanf:"thinking"`
	Security SecurityConfig `koanf:"security"`
	Session  SessionConfig  `koanf:"session"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the MCP server identity and the ops HTTP listener.
type ServerConfig struct {
	// Name is the MCP implementation name advertised during initialize.
	Name string `koanf:"name"`

	// Version is the advertised server version.
	Version string `koanf:"version"`

	// OpsPort is the HTTP port serving /health and /metrics.
	OpsPort int `koanf:"ops_port"`

	// ShutdownTimeout bounds graceful shutdown of the ops listener.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HistoryConfig bounds the thought history store.
type HistoryConfig struct {
	MaxHistorySize       int           `koanf:"max_history_size"`
	MaxThoughtLength     int           `koanf:"max_thought_length"`
	MaxBranchAge         time.Duration `koanf:"max_branch_age"`
	MaxThoughtsPerBranch int           `koanf:"max_thoughts_per_branch"`
	CleanupInterval      time.Duration `koanf:"cleanup_interval"`
}

// ThinkingConfig bounds tree mode.
type ThinkingConfig struct {
	Enabled            bool          `koanf:"enabled"`
	TreeCapacity       int           `koanf:"tree_capacity"`
	MaxTreeAge         time.Duration `koanf:"max_tree_age"`
	MaxConcurrentTrees int           `koanf:"max_concurrent_trees"`
}

// SecurityConfig configures content screening and per-session rate limits.
type SecurityConfig struct {
	// BlockedPatterns are additional regexes screened on top of the
	// built-in denylist. Malformed entries are logged and skipped.
	BlockedPatterns []string `koanf:"blocked_patterns"`

	MaxThoughtsPerMinute int `koanf:"max_thoughts_per_minute"`
}

// SessionConfig bounds the session tracker.
type SessionConfig struct {
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ActiveThreshold time.Duration `koanf:"active_threshold"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Development switches zap to its development encoder.
	Development bool `koanf:"development"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "thinkd"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Server.OpsPort == 0 {
		cfg.Server.OpsPort = 9190
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.History.MaxHistorySize == 0 {
		cfg.History.MaxHistorySize = 1000
	}
	if cfg.History.MaxThoughtLength == 0 {
		cfg.History.MaxThoughtLength = 50000
	}
	if cfg.History.MaxBranchAge == 0 {
		cfg.History.MaxBranchAge = 30 * time.Minute
	}
	if cfg.History.MaxThoughtsPerBranch == 0 {
		cfg.History.MaxThoughtsPerBranch = 500
	}
	if cfg.History.CleanupInterval == 0 {
		cfg.History.CleanupInterval = 5 * time.Minute
	}

	if cfg.Thinking.TreeCapacity == 0 {
		cfg.Thinking.TreeCapacity = 1000
	}
	if cfg.Thinking.MaxTreeAge == 0 {
		cfg.Thinking.MaxTreeAge = time.Hour
	}
	if cfg.Thinking.MaxConcurrentTrees == 0 {
		cfg.Thinking.MaxConcurrentTrees = 100
	}

	if cfg.Security.MaxThoughtsPerMinute == 0 {
		cfg.Security.MaxThoughtsPerMinute = 60
	}

	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 30 * time.Minute
	}
	if cfg.Session.ActiveThreshold == 0 {
		cfg.Session.ActiveThreshold = 5 * time.Minute
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 5 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if c.Server.OpsPort < 0 || c.Server.OpsPort > 65535 {
		return fmt.Errorf("server.ops_port out of range: %d", c.Server.OpsPort)
	}
	if c.History.MaxHistorySize < 1 {
		return fmt.Errorf("history.max_history_size must be positive: %d", c.History.MaxHistorySize)
	}
	if c.History.MaxThoughtLength < 1 {
		return fmt.Errorf("history.max_thought_length must be positive: %d", c.History.MaxThoughtLength)
	}
	if c.History.MaxThoughtsPerBranch < 1 {
		return fmt.Errorf("history.max_thoughts_per_branch must be positive: %d", c.History.MaxThoughtsPerBranch)
	}
	if c.History.MaxBranchAge < 0 {
		return fmt.Errorf("history.max_branch_age must not be negative: %s", c.History.MaxBranchAge)
	}
	if c.History.CleanupInterval < 0 {
		return fmt.Errorf("history.cleanup_interval must not be negative: %s", c.History.CleanupInterval)
	}
	if c.Thinking.TreeCapacity < 1 {
		return fmt.Errorf("thinking.tree_capacity must be positive: %d", c.Thinking.TreeCapacity)
	}
	if c.Thinking.MaxConcurrentTrees < 1 {
		return fmt.Errorf("thinking.max_concurrent_trees must be positive: %d", c.Thinking.MaxConcurrentTrees)
	}
	if c.Security.MaxThoughtsPerMinute < 1 {
		return fmt.Errorf("security.max_thoughts_per_minute must be positive: %d", c.Security.MaxThoughtsPerMinute)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be positive: %s", c.Session.IdleTimeout)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error: %q", c.Logging.Level)
	}
	return nil
}
