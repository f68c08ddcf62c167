// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/maitredhq/maitred/internal/client"
	"github.com/maitredhq/maitred/internal/slots"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type AvailabilityConfig struct {
	// LimitedRatio is the "limited" cutoff: when fewer than this fraction of
	// a day's generated slots remain open, the day is reported as limited.
	LimitedRatio    float64 `yaml:"limited_ratio"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	DebounceMillis  int     `yaml:"debounce_millis"`
	RetryAttempts   int     `yaml:"retry_attempts"`
	RetryBaseMillis int     `yaml:"retry_base_millis"`
	RateLimitPerMin int     `yaml:"rate_limit_per_minute"`
	DefaultRegion   string  `yaml:"default_region"` // phone number parsing region, e.g. "US"
}

func (a AvailabilityConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSeconds) * time.Second
}

func (a AvailabilityConfig) Debounce() time.Duration {
	return time.Duration(a.DebounceMillis) * time.Millisecond
}

func (a AvailabilityConfig) RetryBase() time.Duration {
	return time.Duration(a.RetryBaseMillis) * time.Millisecond
}

// ControllerConfig maps the availability tuning knobs onto a controller
// configuration. Callers fill in the per-surface fields (MealRequired,
// OnUpdate, Logger) themselves.
func (a AvailabilityConfig) ControllerConfig() client.ControllerConfig {
	return client.ControllerConfig{
		Debounce:     a.Debounce(),
		CacheTTL:     a.CacheTTL(),
		LimitedRatio: a.LimitedRatio,
		Policy: client.Policy{
			MaxAttempts: a.RetryAttempts,
			BaseDelay:   a.RetryBase(),
		},
	}
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		AuthToken   string `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Availability AvailabilityConfig `yaml:"availability"`

	Meals []slots.Meal `yaml:"meals"`
}

// Load loads both .env and yaml configuration.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.App.AuthToken = os.Getenv("MAITRED_AUTH_TOKEN")
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Availability.LimitedRatio == 0 {
		c.Availability.LimitedRatio = 0.2
	}
	if c.Availability.CacheTTLSeconds == 0 {
		c.Availability.CacheTTLSeconds = 60
	}
	if c.Availability.DebounceMillis == 0 {
		c.Availability.DebounceMillis = 400
	}
	if c.Availability.RetryAttempts == 0 {
		c.Availability.RetryAttempts = 3
	}
	if c.Availability.RetryBaseMillis == 0 {
		c.Availability.RetryBaseMillis = 600
	}
	if c.Availability.DefaultRegion == "" {
		c.Availability.DefaultRegion = "US"
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}
	if c.Availability.LimitedRatio < 0 || c.Availability.LimitedRatio > 1 {
		return fmt.Errorf("availability limited_ratio must be between 0 and 1")
	}

	seen := make(map[string]struct{}, len(c.Meals))
	for _, meal := range c.Meals {
		if meal.Key == "" {
			return fmt.Errorf("every meal requires a key")
		}
		if _, dup := seen[meal.Key]; dup {
			return fmt.Errorf("duplicate meal key %q", meal.Key)
		}
		seen[meal.Key] = struct{}{}
		// A misconfigured meal (bad interval, capacity, ...) is not fatal
		// here: it yields zero slots plus a diagnostic at request time.
	}
	return nil
}

// Meal looks up a meal definition by key.
func (c *Config) Meal(key string) (slots.Meal, bool) {
	for _, meal := range c.Meals {
		if meal.Key == key {
			return meal, true
		}
	}
	return slots.Meal{}, false
}
