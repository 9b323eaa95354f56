package deduplication

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the duplicate detector
type Config struct {
	// ScoreThreshold is the minimum similarity score (0.0-1.0) for a
	// candidate to be reported as a likely duplicate.
	// Higher values = more conservative (fewer false positives)
	// Lower values = more aggressive (more false positives)
	// Default: 0.70
	ScoreThreshold float64

	// LookbackWindow is how far back to search for potential duplicates.
	// Default: 72 hours
	// Too large = slow scans, stale matches
	// Too small = miss duplicates reported earlier
	LookbackWindow time.Duration

	// MaxCandidates is the maximum number of recent tickets to compare
	// against. This bounds API load and scan time.
	// Default: 100
	MaxCandidates int

	// CategoryBoost is added to the score when the source ticket has a
	// category and the candidate shares it.
	// Default: 0.10
	CategoryBoost float64

	// PriorityBoost is added to the score when the source ticket has a
	// priority and the candidate shares it.
	// Default: 0.05
	PriorityBoost float64
}

// DefaultConfig returns the default detector configuration
//
// These defaults are chosen to:
// - Prefer precision over recall (high score threshold)
// - Focus on freshly reported issues (72 hour window)
// - Keep scans cheap against a rate-limited remote (capped candidates)
func DefaultConfig() Config {
	return Config{
		ScoreThreshold: 0.70,
		LookbackWindow: 72 * time.Hour,
		MaxCandidates:  100,
		CategoryBoost:  0.10,
		PriorityBoost:  0.05,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.ScoreThreshold < 0.0 || c.ScoreThreshold > 1.0 {
		return fmt.Errorf("score_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.ScoreThreshold)
	}
	if c.LookbackWindow <= 0 {
		return fmt.Errorf("lookback_window must be positive (got %v)", c.LookbackWindow)
	}
	if c.LookbackWindow > 90*24*time.Hour {
		return fmt.Errorf("lookback_window too large (got %v, max 90 days)", c.LookbackWindow)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive (got %d)", c.MaxCandidates)
	}
	if c.MaxCandidates > 500 {
		return fmt.Errorf("max_candidates too large (got %d, max 500)", c.MaxCandidates)
	}
	if c.CategoryBoost < 0.0 || c.CategoryBoost > 0.5 {
		return fmt.Errorf("category_boost must be between 0.0 and 0.5 (got %.2f)", c.CategoryBoost)
	}
	if c.PriorityBoost < 0.0 || c.PriorityBoost > 0.5 {
		return fmt.Errorf("priority_boost must be between 0.0 and 0.5 (got %.2f)", c.PriorityBoost)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Threshold: %.2f, Lookback: %v, MaxCandidates: %d, CategoryBoost: %.2f, PriorityBoost: %.2f}",
		c.ScoreThreshold, c.LookbackWindow, c.MaxCandidates, c.CategoryBoost, c.PriorityBoost,
	)
}

// ApplyEnvOverrides returns a copy of the config with environment
// overrides layered on top, revalidated
//
// Environment variables:
//   - DESKMATE_DEDUP_SCORE_THRESHOLD: Minimum score (0.0-1.0) to report a duplicate
//   - DESKMATE_DEDUP_LOOKBACK_HOURS: How many hours to look back for candidates
//   - DESKMATE_DEDUP_MAX_CANDIDATES: Maximum number of tickets to compare against
//   - DESKMATE_DEDUP_CATEGORY_BOOST: Score bonus for a shared category
//   - DESKMATE_DEDUP_PRIORITY_BOOST: Score bonus for a shared priority
//
// Values absent from the environment keep their current settings.
// Returns an error if any environment variable has an invalid value.
func (c Config) ApplyEnvOverrides() (Config, error) {
	if err := parseEnvFloat("DESKMATE_DEDUP_SCORE_THRESHOLD", &c.ScoreThreshold); err != nil {
		return c, err
	}
	if err := parseEnvDuration("DESKMATE_DEDUP_LOOKBACK_HOURS", &c.LookbackWindow, time.Hour); err != nil {
		return c, err
	}
	if err := parseEnvInt("DESKMATE_DEDUP_MAX_CANDIDATES", &c.MaxCandidates); err != nil {
		return c, err
	}
	if err := parseEnvFloat("DESKMATE_DEDUP_CATEGORY_BOOST", &c.CategoryBoost); err != nil {
		return c, err
	}
	if err := parseEnvFloat("DESKMATE_DEDUP_PRIORITY_BOOST", &c.PriorityBoost); err != nil {
		return c, err
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return c, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
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

// parseEnvDuration parses a duration from an environment variable
// The multiplier is used to convert the numeric value to a duration
// (e.g., for hours: multiplier = time.Hour)
func parseEnvDuration(key string, dest *time.Duration, multiplier time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * multiplier
	return nil
}
