// Package config loads engine configuration from a TOML file.
//
// Every field has a usable default; a missing config file is normal and
// yields the default configuration, matching how the rest of the engine
// treats absent inputs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults for optional numeric fields.
const (
	defaultLivenessWindow = 5 * time.Minute
	defaultProbeTimeout   = 5 * time.Second
	defaultCacheTTL       = 2 * time.Second
	defaultTailBytes      = 16 * 1024
	defaultMaxCostFiles   = 100
	defaultTopCosts       = 10
	defaultTopCrashes     = 20
)

// Config is the engine configuration. Pointer fields distinguish "absent"
// from an explicit zero.
type Config struct {
	// LogDir holds the per-run log files.
	LogDir string `toml:"log_dir"`

	// StateDir holds the per-CLI supervisor state files.
	StateDir string `toml:"state_dir"`

	// CoordDir holds the read-only coordination-layer files (leaderboard,
	// board, decisions, genome registry).
	CoordDir string `toml:"coord_dir"`

	// Timezone is the windowing policy for "today": "local" (default) or
	// an IANA zone name such as "UTC".
	Timezone string `toml:"timezone"`

	// LivenessWindow is how recent a log write must be to count a pid-less
	// run as alive. Go duration string; default "5m".
	LivenessWindow string `toml:"liveness_window"`

	// ProbeTimeout bounds each external read (state files, sibling files).
	// Default "5s".
	ProbeTimeout string `toml:"probe_timeout"`

	// CacheTTL is how long a composed snapshot may be served from cache.
	// Default "2s"; "0" disables caching.
	CacheTTL string `toml:"cache_ttl"`

	// TailBytes bounds log tail reads. nil = default (16384).
	TailBytes *int64 `toml:"tail_bytes"`

	// MaxCostFiles caps how many most-recent logs feed cost analytics.
	// nil = default (100).
	MaxCostFiles *int `toml:"max_cost_files"`

	// TopCosts caps the cost-efficiency leaderboard. nil = default (10).
	TopCosts *int `toml:"top_costs"`

	// TopCrashes caps the recent-crash list. nil = default (20).
	TopCrashes *int `toml:"top_crashes"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		LogDir:   "logs",
		StateDir: "state",
		CoordDir: "coord",
	}
}

// Load reads a Config from path. A missing file returns Default() with no
// error; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "state"
	}
	if cfg.CoordDir == "" {
		cfg.CoordDir = "coord"
	}
	return cfg, nil
}

// Location resolves the windowing timezone. Empty or "local" means the
// machine-local zone; anything else is looked up as an IANA name, falling
// back to local when unknown.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" || c.Timezone == "local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetLivenessWindow returns LivenessWindow or the default.
func (c *Config) GetLivenessWindow() time.Duration {
	if c == nil {
		return defaultLivenessWindow
	}
	return parseDurationOrDefault(c.LivenessWindow, defaultLivenessWindow)
}

// GetProbeTimeout returns ProbeTimeout or the default.
func (c *Config) GetProbeTimeout() time.Duration {
	if c == nil {
		return defaultProbeTimeout
	}
	return parseDurationOrDefault(c.ProbeTimeout, defaultProbeTimeout)
}

// GetCacheTTL returns CacheTTL or the default. An explicit "0" disables
// snapshot caching.
func (c *Config) GetCacheTTL() time.Duration {
	if c == nil {
		return defaultCacheTTL
	}
	if c.CacheTTL == "0" {
		return 0
	}
	return parseDurationOrDefault(c.CacheTTL, defaultCacheTTL)
}

// GetTailBytes returns TailBytes or the default (16384).
func (c *Config) GetTailBytes() int64 {
	if c == nil || c.TailBytes == nil || *c.TailBytes <= 0 {
		return defaultTailBytes
	}
	return *c.TailBytes
}

// GetMaxCostFiles returns MaxCostFiles or the default (100).
func (c *Config) GetMaxCostFiles() int {
	if c == nil || c.MaxCostFiles == nil || *c.MaxCostFiles <= 0 {
		return defaultMaxCostFiles
	}
	return *c.MaxCostFiles
}

// GetTopCosts returns TopCosts or the default (10).
func (c *Config) GetTopCosts() int {
	if c == nil || c.TopCosts == nil || *c.TopCosts <= 0 {
		return defaultTopCosts
	}
	return *c.TopCosts
}

// GetTopCrashes returns TopCrashes or the default (20).
func (c *Config) GetTopCrashes() int {
	if c == nil || c.TopCrashes == nil || *c.TopCrashes <= 0 {
		return defaultTopCrashes
	}
	return *c.TopCrashes
}

// parseDurationOrDefault parses a Go duration string, returning fallback on
// error or empty input.
func parseDurationOrDefault(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
