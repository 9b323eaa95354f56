package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/deskmate-io/deskmate/internal/deduplication"
	"github.com/deskmate-io/deskmate/internal/psa"
)

// EnvProfileName is the synthetic profile created when a connection is
// supplied entirely through DESKMATE_* environment variables.
const EnvProfileName = "env"

// DefaultPath returns the default config file location
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".deskmate", "config.yaml")
	}
	return filepath.Join(home, ".deskmate", "config.yaml")
}

// Profile holds the connection settings for one remote helpdesk
// instance. A config file can carry several (production, staging, a
// sandbox tenant) selected by name.
type Profile struct {
	// BaseURL is the root of the remote instance
	BaseURL string `yaml:"base_url"`

	// Tenant identifies the tenant on multi-tenant hosts
	Tenant string `yaml:"tenant,omitempty"`

	// ClientID is the OAuth2 client id registered on the remote
	ClientID string `yaml:"client_id"`

	// ClientSecret is the matching secret, stored inline
	ClientSecret string `yaml:"client_secret,omitempty"`

	// ClientSecretEnv names an environment variable holding the
	// secret, for setups that keep secrets out of config files. The
	// inline value wins when both are set.
	ClientSecretEnv string `yaml:"client_secret_env,omitempty"`

	// RequestsPerSecond throttles outgoing calls when positive
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// Secret resolves the client secret, preferring the inline value
func (p Profile) Secret() string {
	if p.ClientSecret != "" {
		return p.ClientSecret
	}
	if p.ClientSecretEnv != "" {
		return os.Getenv(p.ClientSecretEnv)
	}
	return ""
}

// ClientConfig converts the profile into connection settings
func (p Profile) ClientConfig() psa.Config {
	return psa.Config{
		BaseURL:           p.BaseURL,
		Tenant:            p.Tenant,
		ClientID:          p.ClientID,
		ClientSecret:      p.Secret(),
		RequestsPerSecond: p.RequestsPerSecond,
	}
}

// LogConfig controls diagnostic log output
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error
	// Default: info
	Level string `yaml:"level"`

	// File receives log output when set; stderr otherwise
	File string `yaml:"file,omitempty"`

	// MaxSizeMB is the size at which the log file rotates
	// Default: 10
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is how many rotated files to keep
	// Default: 3
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays is how long rotated files are kept (in days)
	// Default: 30
	MaxAgeDays int `yaml:"max_age_days"`

	// Compress gzips rotated files
	// Default: true
	Compress bool `yaml:"compress"`
}

// DedupConfig mirrors the duplicate detector knobs in the config file
type DedupConfig struct {
	ScoreThreshold float64 `yaml:"score_threshold"`
	LookbackHours  int     `yaml:"lookback_hours"`
	MaxCandidates  int     `yaml:"max_candidates"`
	CategoryBoost  float64 `yaml:"category_boost"`
	PriorityBoost  float64 `yaml:"priority_boost"`
}

// DetectorConfig converts the file values into detector settings
func (d DedupConfig) DetectorConfig() deduplication.Config {
	return deduplication.Config{
		ScoreThreshold: d.ScoreThreshold,
		LookbackWindow: time.Duration(d.LookbackHours) * time.Hour,
		MaxCandidates:  d.MaxCandidates,
		CategoryBoost:  d.CategoryBoost,
		PriorityBoost:  d.PriorityBoost,
	}
}

// StoreConfig locates the local audit database
type StoreConfig struct {
	// Path is the SQLite database file; a leading ~ expands to the
	// user's home directory
	Path string `yaml:"path"`

	// Retention bounds the merge history kept in the database
	Retention HistoryRetentionConfig `yaml:"retention"`
}

// ChatConfig controls the interactive assistant
type ChatConfig struct {
	// Model is the model used for assistant conversations
	// Default: claude-sonnet-4-5
	Model string `yaml:"model"`

	// MaxTokens bounds one assistant reply
	// Default: 4096
	MaxTokens int `yaml:"max_tokens"`
}

// Config is the root of the deskmate configuration file
type Config struct {
	// DefaultProfile names the profile used when --profile is absent
	DefaultProfile string `yaml:"default_profile,omitempty"`

	// Profiles maps profile names to connection settings
	Profiles map[string]Profile `yaml:"profiles"`

	Log   LogConfig   `yaml:"log"`
	Dedup DedupConfig `yaml:"dedup"`
	Store StoreConfig `yaml:"store"`
	Chat  ChatConfig  `yaml:"chat"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() Config {
	dedup := deduplication.DefaultConfig()
	return Config{
		Profiles: map[string]Profile{},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Dedup: DedupConfig{
			ScoreThreshold: dedup.ScoreThreshold,
			LookbackHours:  int(dedup.LookbackWindow / time.Hour),
			MaxCandidates:  dedup.MaxCandidates,
			CategoryBoost:  dedup.CategoryBoost,
			PriorityBoost:  dedup.PriorityBoost,
		},
		Store: StoreConfig{
			Path:      "~/.deskmate/deskmate.db",
			Retention: DefaultHistoryRetentionConfig(),
		},
		Chat: ChatConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
		},
	}
}

// Load reads the config file at path, layering it over the defaults
// and then applying DESKMATE_* environment overrides. A missing file
// is not an error: defaults plus environment still produce a usable
// configuration.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ExpandPath(path))
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides layers DESKMATE_* variables over the file values
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DESKMATE_PROFILE"); v != "" {
		cfg.DefaultProfile = v
	}
	if v := os.Getenv("DESKMATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DESKMATE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("DESKMATE_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}

	// A connection supplied entirely through the environment becomes
	// its own profile and takes precedence over the file.
	if base := os.Getenv("DESKMATE_BASE_URL"); base != "" {
		if cfg.Profiles == nil {
			cfg.Profiles = map[string]Profile{}
		}
		cfg.Profiles[EnvProfileName] = Profile{
			BaseURL:      base,
			Tenant:       os.Getenv("DESKMATE_TENANT"),
			ClientID:     os.Getenv("DESKMATE_CLIENT_ID"),
			ClientSecret: os.Getenv("DESKMATE_CLIENT_SECRET"),
		}
		cfg.DefaultProfile = EnvProfileName
	}

	// Detector tuning has its own DESKMATE_DEDUP_* variables, layered
	// over the file's dedup section.
	if dedupEnvPresent() {
		det, err := cfg.Dedup.DetectorConfig().ApplyEnvOverrides()
		if err != nil {
			return err
		}
		cfg.Dedup = DedupConfig{
			ScoreThreshold: det.ScoreThreshold,
			LookbackHours:  int(det.LookbackWindow / time.Hour),
			MaxCandidates:  det.MaxCandidates,
			CategoryBoost:  det.CategoryBoost,
			PriorityBoost:  det.PriorityBoost,
		}
	}
	return nil
}

func dedupEnvPresent() bool {
	for _, key := range []string{
		"DESKMATE_DEDUP_SCORE_THRESHOLD",
		"DESKMATE_DEDUP_LOOKBACK_HOURS",
		"DESKMATE_DEDUP_MAX_CANDIDATES",
		"DESKMATE_DEDUP_CATEGORY_BOOST",
		"DESKMATE_DEDUP_PRIORITY_BOOST",
	} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// Validate checks if the configuration has valid values. Profile
// credentials are checked lazily at connect time, not here, so a
// config file with placeholder profiles still loads.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q is not valid", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("log max_size_mb cannot be negative (got %d)", c.Log.MaxSizeMB)
	}
	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log max_backups cannot be negative (got %d)", c.Log.MaxBackups)
	}
	if c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log max_age_days cannot be negative (got %d)", c.Log.MaxAgeDays)
	}
	if err := c.Dedup.DetectorConfig().Validate(); err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if err := c.Store.Retention.Validate(); err != nil {
		return fmt.Errorf("store retention: %w", err)
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("chat max_tokens must be positive (got %d)", c.Chat.MaxTokens)
	}
	return nil
}

// ResolveProfile returns the resolved profile name and the profile,
// falling back to the default profile, or to the only configured one
// when that is unambiguous.
func (c Config) ResolveProfile(name string) (string, Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		if len(c.Profiles) == 1 {
			for n, p := range c.Profiles {
				return n, p, nil
			}
		}
		return "", Profile{}, fmt.Errorf("no profile selected: set default_profile in the config file or pass --profile")
	}
	p, ok := c.Profiles[name]
	if !ok {
		if len(c.Profiles) == 0 {
			return "", Profile{}, fmt.Errorf("unknown profile %q: no profiles configured", name)
		}
		return "", Profile{}, fmt.Errorf("unknown profile %q (configured: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}
	return name, p, nil
}

// ProfileNames returns the configured profile names, sorted
func (c Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
