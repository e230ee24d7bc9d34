package application

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the engine's tunables. Zero values fall back to
// DefaultConfig through Load.
type Config struct {
	// Cache controls the lifetimes of cached aggregation results.
	Cache CacheConfig `yaml:"cache"`

	// Limits bounds contest settings and expensive operations.
	Limits LimitsConfig `yaml:"limits"`
}

// CacheConfig sets the TTLs of the engine's cache keys. A zero TTL caches
// forever until invalidated.
type CacheConfig struct {
	// ScoreboardTTL bounds how stale a cached ranking may get.
	ScoreboardTTL time.Duration `yaml:"scoreboard_ttl" validate:"min=0"`

	// ContestInfoTTL bounds cached contest detail payloads.
	ContestInfoTTL time.Duration `yaml:"contest_info_ttl" validate:"min=0"`

	// ContestListTTL bounds cached per-viewer-class contest lists.
	ContestListTTL time.Duration `yaml:"contest_list_ttl" validate:"min=0"`
}

// LimitsConfig bounds contest settings and the activity report rate.
type LimitsConfig struct {
	// MaxContestLength caps finish minus start at creation and update.
	MaxContestLength time.Duration `yaml:"max_contest_length" validate:"required"`

	// ReportRatePerSecond throttles activity report generation; the
	// underlying log scans are expensive.
	ReportRatePerSecond float64 `yaml:"report_rate_per_second" validate:"min=0"`

	// ReportBurst is the report limiter's burst size.
	ReportBurst int `yaml:"report_burst" validate:"min=1"`
}

// DefaultConfig returns the engine defaults: five-second scoreboard
// caching, one-minute detail caching, a 31-day contest cap, and one
// report per second with a burst of three.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			ScoreboardTTL:  5 * time.Second,
			ContestInfoTTL: time.Minute,
			ContestListTTL: 30 * time.Second,
		},
		Limits: LimitsConfig{
			MaxContestLength:    31 * 24 * time.Hour,
			ReportRatePerSecond: 1,
			ReportBurst:         3,
		},
	}
}

// LoadConfig parses a YAML document over the defaults and validates the
// result.
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
