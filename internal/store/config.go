package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ISS struct {
		BaseURL             string `yaml:"base_url"`
		TimeoutSeconds      int    `yaml:"timeout_seconds"`
		BoardTimeoutSeconds int    `yaml:"board_timeout_seconds"`
		UserAgent           string `yaml:"user_agent"`
		RateLimit           struct {
			MaxTokens int `yaml:"max_tokens"`
			RefillMs  int `yaml:"refill_ms"`
		} `yaml:"rate_limit"`
	} `yaml:"iss"`
	Retry struct {
		MaxAttempts   int   `yaml:"max_attempts"`
		InitialWaitMs int   `yaml:"initial_wait_ms"`
		MaxWaitMs     int   `yaml:"max_wait_ms"`
		Statuses      []int `yaml:"statuses"`
	} `yaml:"retry"`
	Cache struct {
		TTLMinutes         int `yaml:"ttl_minutes"`
		NegativeTTLSeconds int `yaml:"negative_ttl_seconds"`
	} `yaml:"cache"`
	Boards   []string `yaml:"boards"`
	Workers  int      `yaml:"workers"`
	Timezone string   `yaml:"timezone"`
	Risk     struct {
		OvernightDays    int `yaml:"overnight_days"`
		DefaultExtraDays int `yaml:"default_extra_days"`
		MinExtraDays     int `yaml:"min_extra_days"`
		MaxExtraDays     int `yaml:"max_extra_days"`
	} `yaml:"risk"`
	Issuers struct {
		URL string `yaml:"url"`
	} `yaml:"issuers"`
	HTTP struct {
		Addr            string `yaml:"addr"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"http"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Audit struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"audit"`
}

const MaxWorkers = 40

func (c *Config) Validate() error {
	if c.ISS.BaseURL == "" {
		return errors.New("iss.base_url cannot be empty")
	}
	if c.ISS.TimeoutSeconds <= 0 || c.ISS.BoardTimeoutSeconds <= 0 {
		return fmt.Errorf("iss timeouts must be positive, got %d/%d", c.ISS.TimeoutSeconds, c.ISS.BoardTimeoutSeconds)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxWaitMs < c.Retry.InitialWaitMs {
		return fmt.Errorf("retry.max_wait_ms (%d) must not be below retry.initial_wait_ms (%d)", c.Retry.MaxWaitMs, c.Retry.InitialWaitMs)
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1-%d, got %d", MaxWorkers, c.Workers)
	}
	if len(c.Boards) == 0 {
		return errors.New("boards cannot be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	if c.Risk.OvernightDays < 1 {
		return fmt.Errorf("risk.overnight_days must be positive, got %d", c.Risk.OvernightDays)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative, got %d", c.Audit.RetentionDays)
	}
	if c.Risk.MinExtraDays > c.Risk.MaxExtraDays {
		return fmt.Errorf("risk.min_extra_days (%d) exceeds risk.max_extra_days (%d)", c.Risk.MinExtraDays, c.Risk.MaxExtraDays)
	}
	if c.Risk.DefaultExtraDays < c.Risk.MinExtraDays || c.Risk.DefaultExtraDays > c.Risk.MaxExtraDays {
		return fmt.Errorf("risk.default_extra_days must be between %d-%d, got %d",
			c.Risk.MinExtraDays, c.Risk.MaxExtraDays, c.Risk.DefaultExtraDays)
	}
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.ISS.BaseURL == "" {
		c.ISS.BaseURL = "https://iss.moex.com"
	}
	c.ISS.BaseURL = strings.TrimRight(c.ISS.BaseURL, "/")
	if c.ISS.TimeoutSeconds == 0 {
		c.ISS.TimeoutSeconds = 10
	}
	if c.ISS.BoardTimeoutSeconds == 0 {
		c.ISS.BoardTimeoutSeconds = 20
	}
	if c.ISS.UserAgent == "" {
		c.ISS.UserAgent = "repo-pretrade/1.0"
	}
	if c.ISS.RateLimit.MaxTokens == 0 {
		c.ISS.RateLimit.MaxTokens = 20
	}
	if c.ISS.RateLimit.RefillMs == 0 {
		c.ISS.RateLimit.RefillMs = 50
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialWaitMs == 0 {
		c.Retry.InitialWaitMs = 800
	}
	if c.Retry.MaxWaitMs == 0 {
		c.Retry.MaxWaitMs = 8000
	}
	if len(c.Retry.Statuses) == 0 {
		c.Retry.Statuses = []int{429, 500, 502, 503, 504}
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = 60
	}
	if c.Cache.NegativeTTLSeconds == 0 {
		c.Cache.NegativeTTLSeconds = 60
	}
	if len(c.Boards) == 0 {
		c.Boards = []string{"tqob", "tqcb"}
	}
	if c.Workers == 0 {
		c.Workers = 10
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Moscow"
	}
	if c.Risk.OvernightDays == 0 {
		c.Risk.OvernightDays = 2
	}
	if c.Risk.MinExtraDays == 0 {
		c.Risk.MinExtraDays = 2
	}
	if c.Risk.MaxExtraDays == 0 {
		c.Risk.MaxExtraDays = 366
	}
	if c.Risk.DefaultExtraDays == 0 {
		c.Risk.DefaultExtraDays = c.Risk.MinExtraDays
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.CacheTTLSeconds == 0 {
		c.HTTP.CacheTTLSeconds = 300
	}
}

// applyEnv lets deployment override the file without editing it.
func (c *Config) applyEnv() error {
	if v := os.Getenv("PRETRADE_ISS_BASE_URL"); v != "" {
		c.ISS.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("PRETRADE_ISSUERS_URL"); v != "" {
		c.Issuers.URL = v
	}
	if v := os.Getenv("PRETRADE_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("PRETRADE_AUDIT_DIR"); v != "" {
		c.Audit.Dir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"PRETRADE_WORKERS", &c.Workers},
		{"PRETRADE_CACHE_TTL_MINUTES", &c.Cache.TTLMinutes},
		{"PRETRADE_OVERNIGHT_DAYS", &c.Risk.OvernightDays},
		{"REDIS_DB", &c.Redis.DB},
		{"PRETRADE_AUDIT_RETENTION_DAYS", &c.Audit.RetentionDays},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}
	return nil
}

// LoadConfig reads the YAML file at path (empty path means defaults only),
// applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, fmt.Errorf("config env override failed: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ISS.TimeoutSeconds) * time.Second
}

func (c *Config) BoardTimeout() time.Duration {
	return time.Duration(c.ISS.BoardTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

func (c *Config) NegativeTTL() time.Duration {
	return time.Duration(c.Cache.NegativeTTLSeconds) * time.Second
}

func (c *Config) HTTPCacheTTL() time.Duration {
	return time.Duration(c.HTTP.CacheTTLSeconds) * time.Second
}

// Location returns the zone that defines "today". Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
