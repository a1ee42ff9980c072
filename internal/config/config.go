// Package config handles loading and managing chatdump configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"chatdump/internal/chatwoot"
)

// Config represents the chatdump configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Extract ExtractConfig `toml:"extract"`
	Cache   CacheConfig   `toml:"cache"`
	Output  OutputConfig  `toml:"output"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// APIConfig holds the tenant credentials. Env vars CHATWOOT_API_URL,
// CHATWOOT_ACCESS_TOKEN and CHATWOOT_ACCOUNT_ID override the file values.
type APIConfig struct {
	BaseURL     string `toml:"base_url"`
	AccessToken string `toml:"access_token"`
	AccountID   string `toml:"account_id"`
}

// ExtractConfig holds extraction tuning knobs.
type ExtractConfig struct {
	MaxWorkers        int     `toml:"max_workers"`         // Message fetch pool size
	RateLimitDelay    float64 `toml:"rate_limit_delay"`    // Starting inter-request delay, seconds
	MinRateLimitDelay float64 `toml:"min_rate_limit_delay"` // Adaptive floor, seconds
	MaxRateLimitDelay float64 `toml:"max_rate_limit_delay"` // Adaptive ceiling, seconds
	AdaptiveRateLimit bool    `toml:"adaptive_rate_limit"`
	MaxAttempts       int     `toml:"max_attempts"` // Retry budget per call
	BaseBackoff       float64 `toml:"base_backoff"` // Seconds before the first retry
}

// CacheConfig holds channel-map cache configuration.
type CacheConfig struct {
	TTL float64 `toml:"ttl"` // Seconds; 0 disables reuse
	Dir string  `toml:"dir"` // Defaults to <home>/cache
}

// OutputConfig holds default sink configuration.
type OutputConfig struct {
	Path   string `toml:"path"`
	Format string `toml:"format"` // json, jsonl, csv or sqlite
}

// DefaultHome returns the default chatdump home directory.
// Respects the CHATDUMP_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("CHATDUMP_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatdump"
	}
	return filepath.Join(home, ".chatdump")
}

// Load reads the configuration from the specified file. If path is empty,
// the default location (<home>/config.toml) is used; a missing file just
// yields the defaults. Environment variables override credentials from the
// file.
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Extract: ExtractConfig{
			MaxWorkers:        10,
			RateLimitDelay:    0.5,
			MinRateLimitDelay: 0.1,
			MaxRateLimitDelay: 30,
			AdaptiveRateLimit: true,
			MaxAttempts:       3,
			BaseBackoff:       1,
		},
		Cache: CacheConfig{
			TTL: 24 * 60 * 60,
		},
		Output: OutputConfig{
			Path:   "chatwoot_history_dump.json",
			Format: "json",
		},
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if v := os.Getenv("CHATWOOT_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CHATWOOT_ACCESS_TOKEN"); v != "" {
		cfg.API.AccessToken = v
	}
	if v := os.Getenv("CHATWOOT_ACCOUNT_ID"); v != "" {
		cfg.API.AccountID = v
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(homeDir, "cache")
	}

	return cfg, nil
}

// Validate checks that the configuration can support a run. Validation
// failures are fatal before any network call is made.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" || c.API.AccessToken == "" || c.API.AccountID == "" {
		return fmt.Errorf("missing credentials: set api.base_url, api.access_token and api.account_id " +
			"(or CHATWOOT_API_URL, CHATWOOT_ACCESS_TOKEN, CHATWOOT_ACCOUNT_ID)")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}
	if c.Extract.MaxWorkers < 1 {
		return fmt.Errorf("extract.max_workers must be >= 1, got %d", c.Extract.MaxWorkers)
	}
	if c.Extract.MaxAttempts < 1 {
		return fmt.Errorf("extract.max_attempts must be >= 1, got %d", c.Extract.MaxAttempts)
	}
	if c.Extract.RateLimitDelay < 0 || c.Extract.MinRateLimitDelay < 0 {
		return fmt.Errorf("rate limit delays must not be negative")
	}
	if c.Extract.MaxRateLimitDelay > 0 && c.Extract.MaxRateLimitDelay < c.Extract.MinRateLimitDelay {
		return fmt.Errorf("extract.max_rate_limit_delay must be >= extract.min_rate_limit_delay")
	}
	return nil
}

// Credentials returns the API credentials with a normalized base URL.
func (c *Config) Credentials() chatwoot.Credentials {
	return chatwoot.Credentials{
		BaseURL:     strings.TrimRight(c.API.BaseURL, "/"),
		AccessToken: c.API.AccessToken,
		AccountID:   c.API.AccountID,
	}
}

// CacheTTL returns the channel cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL * float64(time.Second))
}

// RateLimitDelays returns the starting, minimum and maximum inter-request
// delays as durations.
func (c *Config) RateLimitDelays() (delay, min, max time.Duration) {
	return time.Duration(c.Extract.RateLimitDelay * float64(time.Second)),
		time.Duration(c.Extract.MinRateLimitDelay * float64(time.Second)),
		time.Duration(c.Extract.MaxRateLimitDelay * float64(time.Second))
}

// BaseBackoff returns the retry base backoff as a duration.
func (c *Config) BaseBackoff() time.Duration {
	return time.Duration(c.Extract.BaseBackoff * float64(time.Second))
}

// DatabasePath returns the path of the SQLite output database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.HomeDir, "chatdump.db")
}
