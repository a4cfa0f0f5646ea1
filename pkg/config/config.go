// Package config holds the runtime settings of booru-enum and the registry of
// known image-board sites.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/booru-enum/pkg/cache"
	"github.com/Sternrassler/booru-enum/pkg/client"
	"github.com/Sternrassler/booru-enum/pkg/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultUserAgent is sent when USER_AGENT is not set.
const DefaultUserAgent = "booru-enum/0.1.0"

// Config holds runtime settings.
type Config struct {
	// RedisAddr enables the page cache. Empty disables it.
	RedisAddr string

	UserAgent   string
	LogLevel    logging.LogLevel
	LogPretty   bool
	HTTPTimeout time.Duration

	// MaxRetries is the number of attempts per page, including the first.
	MaxRetries int

	CacheTTL time.Duration

	// SitesFile is an optional YAML file merged over the built-in sites.
	SitesFile string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		UserAgent:   DefaultUserAgent,
		LogLevel:    logging.LevelInfo,
		HTTPTimeout: 30 * time.Second,
		MaxRetries:  client.DefaultRetryConfig().MaxAttempts,
		CacheTTL:    cache.DefaultTTL,
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Default()

	cfg.RedisAddr = strings.TrimPrefix(getEnv("REDIS_ADDR", cfg.RedisAddr), "redis://")
	cfg.UserAgent = getEnv("USER_AGENT", cfg.UserAgent)
	cfg.LogLevel = logging.LogLevel(getEnv("LOG_LEVEL", string(cfg.LogLevel)))
	cfg.SitesFile = getEnv("BOORU_SITES", cfg.SitesFile)

	var err error
	if cfg.LogPretty, err = getEnvBool("LOG_PRETTY", cfg.LogPretty); err != nil {
		return cfg, err
	}
	if cfg.HTTPTimeout, err = getEnvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = getEnvInt("MAX_RETRIES", cfg.MaxRetries); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("user agent must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0 (got %s)", c.HTTPTimeout)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be >= 1 (got %d)", c.MaxRetries)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative (got %s)", c.CacheTTL)
	}
	return nil
}

// CacheEnabled reports whether a Redis address is configured.
func (c Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

// Client returns the transport settings. redisClient may be nil.
func (c Config) Client(redisClient *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.UserAgent)
	cfg.Redis = redisClient
	cfg.Timeout = c.HTTPTimeout
	cfg.CacheTTL = c.CacheTTL
	cfg.Retry.MaxAttempts = c.MaxRetries
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getEnvDuration accepts Go durations ("45s") and plain seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
