package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Europe/Lisbon"
	defaultRefreshCron = "*/30 * * * *"
	defaultVenueCap    = 15
	defaultTimeoutSec  = 15
	defaultUserAgent   = "cityevents/1.0"
	defaultCacheTTLSec = 900
	defaultRateLimit   = 120
)

// Configuration validation errors.
var (
	ErrEmptyPath        = errors.New("config path is empty")
	ErrNilConfig        = errors.New("config is nil")
	ErrInvalidTimezone  = errors.New("timezone must be a valid IANA zone name")
	ErrInvalidRefresh   = errors.New("refresh must be a 5-field cron expression")
	ErrInvalidVenueCap  = errors.New("venue_cap must be non-negative")
	ErrInvalidBasicAuth = errors.New("basic_auth requires both username and password")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// FeedsConfig holds one URL per feed. Every feed is optional.
type FeedsConfig struct {
	Events          string `yaml:"events" json:"events" validate:"omitempty,url"`
	Venues          string `yaml:"venues" json:"venues" validate:"omitempty,url"`
	EventTags       string `yaml:"event_tags" json:"event_tags" validate:"omitempty,url"`
	VenueTags       string `yaml:"venue_tags" json:"venue_tags" validate:"omitempty,url"`
	Collections     string `yaml:"collections" json:"collections" validate:"omitempty,url"`
	CollectionItems string `yaml:"collection_items" json:"collection_items" validate:"omitempty,url"`
}

// FetchConfig tunes outbound feed requests.
type FetchConfig struct {
	// TimeoutSec bounds each feed request.
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec" validate:"min=1,max=300"`
	// RatePerSecond paces requests across all feeds; 0 means unlimited.
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second" validate:"min=0"`
	Burst         int     `yaml:"burst" json:"burst" validate:"min=0,max=100"`
	UserAgent     string  `yaml:"user_agent" json:"user_agent"`
}

// Timeout returns TimeoutSec as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSec) * time.Second
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=json console"`
}

// APIConfig controls the HTTP API.
type APIConfig struct {
	// RateLimitPerMinute is the per-IP request budget; 0 disables limiting.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute" validate:"min=0,max=100000"`
	// CacheTTLSec is how long a pipeline snapshot is served before an API
	// request triggers a fresh run.
	CacheTTLSec int `yaml:"cache_ttl_sec" json:"cache_ttl_sec" validate:"min=0"`
}

// CacheTTL returns CacheTTLSec as a duration.
func (a APIConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSec) * time.Second
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA zone used for feed timestamps that carry no
	// offset and no per-row timezone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/30 * * * *")
	// used for periodic pipeline runs.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// VenueCap is the maximum number of events per venue. Unset means 15;
	// 0 disables the cap.
	VenueCap *int `yaml:"venue_cap,omitempty" json:"venue_cap,omitempty"`

	// CalendarName is the name of the exported iCalendar feed.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	Log   LogConfig   `yaml:"log" json:"log"`
	Feeds FeedsConfig `yaml:"feeds" json:"feeds"`
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`
	API   APIConfig   `yaml:"api" json:"api"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	venueCap := defaultVenueCap
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		RefreshCron:  defaultRefreshCron,
		VenueCap:     &venueCap,
		CalendarName: "City events",
		Log:          LogConfig{Level: "info", Format: "json"},
		Fetch: FetchConfig{
			TimeoutSec: defaultTimeoutSec,
			UserAgent:  defaultUserAgent,
		},
		API: APIConfig{
			RateLimitPerMinute: defaultRateLimit,
			CacheTTLSec:        defaultCacheTTLSec,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.VenueCap == nil {
		venueCap := defaultVenueCap
		c.VenueCap = &venueCap
	}
	if c.CalendarName == "" {
		c.CalendarName = "City events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = defaultTimeoutSec
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.API.CacheTTLSec <= 0 {
		c.API.CacheTTLSec = defaultCacheTTLSec
	}
}

// Cap returns the effective venue cap.
func (c *Config) Cap() int {
	if c.VenueCap == nil {
		return defaultVenueCap
	}
	return *c.VenueCap
}

// Location loads the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the configuration after Normalize. Field rules come from
// the validate struct tags; cross-field and parse checks return the
// sentinel errors above.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidRefresh, c.RefreshCron, err)
	}
	if c.VenueCap != nil && *c.VenueCap < 0 {
		return ErrInvalidVenueCap
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		return ErrInvalidBasicAuth
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return ErrNilConfig
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".cityevents-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
