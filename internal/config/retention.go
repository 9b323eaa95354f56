package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// HistoryRetentionConfig bounds the local merge audit log
type HistoryRetentionConfig struct {
	// MaxAgeDays is how old merge records may grow before pruning (in days)
	// Default: 180, Range: 0-730
	// 0 = keep forever
	MaxAgeDays int `yaml:"max_age_days"`

	// MaxEntries is the maximum number of merge records to keep
	// Oldest records are pruned first when the limit is exceeded
	// Default: 5000, Range: 0-100000
	// 0 = unlimited
	MaxEntries int `yaml:"max_entries"`
}

// DefaultHistoryRetentionConfig returns the default retention configuration
//
// These defaults are chosen to:
// - Keep roughly half a year of merge history for audit questions
// - Cap the local database at a size that stays instant to query
func DefaultHistoryRetentionConfig() HistoryRetentionConfig {
	return HistoryRetentionConfig{
		MaxAgeDays: 180,
		MaxEntries: 5000,
	}
}

// Validate checks if the configuration has valid values
func (c HistoryRetentionConfig) Validate() error {
	if c.MaxAgeDays < 0 || c.MaxAgeDays > 730 {
		return fmt.Errorf("max_age_days must be between 0 and 730 (got %d)", c.MaxAgeDays)
	}
	if c.MaxEntries < 0 || c.MaxEntries > 100000 {
		return fmt.Errorf("max_entries must be between 0 and 100000 (got %d)", c.MaxEntries)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c HistoryRetentionConfig) String() string {
	return fmt.Sprintf(
		"HistoryRetentionConfig{MaxAgeDays: %d, MaxEntries: %d}",
		c.MaxAgeDays, c.MaxEntries,
	)
}

// MaxAge returns the age threshold as a time.Duration
func (c HistoryRetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// ApplyEnvOverrides returns a copy of the config with environment
// overrides layered on top, revalidated
//
// Environment variables:
//   - DESKMATE_HISTORY_MAX_AGE_DAYS: Retention period for merge records in days, 0 for forever
//   - DESKMATE_HISTORY_MAX_ENTRIES: Maximum merge records to keep, 0 for unlimited
//
// Values absent from the environment keep their current settings.
// Returns an error if any environment variable has an invalid value.
func (c HistoryRetentionConfig) ApplyEnvOverrides() (HistoryRetentionConfig, error) {
	if err := parseEnvInt("DESKMATE_HISTORY_MAX_AGE_DAYS", &c.MaxAgeDays); err != nil {
		return c, err
	}
	if err := parseEnvInt("DESKMATE_HISTORY_MAX_ENTRIES", &c.MaxEntries); err != nil {
		return c, err
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid history retention configuration from environment: %w", err)
	}

	return c, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
