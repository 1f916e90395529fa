package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// storage
	StoreDriver    string `toml:"store_driver"`
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`
	SQLitePath     string `toml:"sqlite_path"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// training log
	AnonymousUserID      string   `toml:"anonymous_user_id"`
	PRCacheTTL           Duration `toml:"pr_cache_ttl"`
	PRCacheSizeMB        int      `toml:"pr_cache_size_mb"`
	WriteRateLimitPerMin int      `toml:"write_rate_limit_per_min"`
	TxMaxAttempts        int      `toml:"tx_max_attempts"`
	AllowedOrigins       []string `toml:"allowed_origins"`
}

// Duration reads TOML strings like "30s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration [%s]: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the TOML file at path and returns the section for env.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env [%s]", env)
	}
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config for env [%s]: %w", env, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "" {
			return fmt.Errorf("postgres store needs host, port and db name")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite store needs sqlite_path")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver [%s]", c.StoreDriver)
	}

	if c.Port <= 0 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.WriteRateLimitPerMin <= 0 {
		return fmt.Errorf("write_rate_limit_per_min must be positive")
	}
	return nil
}
