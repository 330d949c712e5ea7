// Package config loads server configuration from an optional YAML file, an
// optional .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultRenetSchedule is how often every group is re-netted.
const DefaultRenetSchedule = "@every 1h"

// Config is the server configuration.
type Config struct {
	HTTPAddr  string          `yaml:"http_addr"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// RenetSchedule is a cron spec; empty disables periodic re-netting.
	RenetSchedule string `yaml:"renet_schedule"`

	// LockExpiry bounds how long a Redis scope lock outlives a crashed holder.
	LockExpiry time.Duration `yaml:"lock_expiry"`

	MetricsNamespace string `yaml:"metrics_namespace"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

// RedisConfig enables the Redis scope locker when Addr is set. Without it
// locks are held in process, which is only correct for a single replica.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "./data/settlements.db",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
		RenetSchedule:    DefaultRenetSchedule,
		LockExpiry:       30 * time.Second,
		MetricsNamespace: "splitslice",
	}
}

// Load builds the configuration. path names a YAML file and may be empty.
// A .env file in the working directory is loaded if present; variables
// already set in the environment win over it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.MetricsNamespace, "METRICS_NAMESPACE")

	// Set but empty disables re-netting.
	if v, ok := os.LookupEnv("RENET_SCHEDULE"); ok {
		c.RenetSchedule = v
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.Redis.DB = n
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLimit.RPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
		c.RateLimit.Burst = n
	}
	if err := setDuration(&c.LockExpiry, "LOCK_EXPIRY"); err != nil {
		return err
	}
	return setDuration(&c.Auth.TokenTTL, "TOKEN_TTL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate limit rps and burst must be positive"))
	}
	if c.Redis.Addr != "" && c.LockExpiry <= 0 {
		errs = append(errs, errors.New("lock expiry must be positive"))
	}

	return errors.Join(errs...)
}
