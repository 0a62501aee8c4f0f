package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	StorageBackendMemory = "memory"
	StorageBackendRedis  = "redis"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// client storage
	StorageBackend         string `toml:"storage_backend"`
	RedisHost              string `toml:"redis_host"`
	RedisPort              string `toml:"redis_port"`
	StorageCacheEnabled    bool   `toml:"storage_cache_enabled"`
	StorageCacheSizeMB     int    `toml:"storage_cache_size_mb"`
	StorageCacheTTLSeconds int    `toml:"storage_cache_ttl_seconds"`
	// web
	ClientCookieName            string   `toml:"client_cookie_name"`
	SecureCookies               bool     `toml:"secure_cookies"`
	AllowedOrigins              []string `toml:"allowed_origins"`
	LoginRateLimitAllowedPerMin int      `toml:"login_rate_limit_allowed_per_min"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("missing config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file and returns the validated section for env.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", env, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.PrometheusMetricsPort == "" {
		errs = append(errs, errors.New("prometheus metrics port not set"))
	}
	if c.ClientCookieName == "" {
		errs = append(errs, errors.New("client cookie name not set"))
	}

	switch c.StorageBackend {
	case StorageBackendMemory:
	case StorageBackendRedis:
		if c.RedisHost == "" || c.RedisPort == "" {
			errs = append(errs, errors.New("redis storage needs redis host and port"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend: %q", c.StorageBackend))
	}

	if c.StorageCacheEnabled && (c.StorageCacheSizeMB <= 0 || c.StorageCacheTTLSeconds <= 0) {
		errs = append(errs, errors.New("storage cache needs a positive size and ttl"))
	}

	if c.LoginRateLimitAllowedPerMin < 0 {
		errs = append(errs, fmt.Errorf("negative login rate limit: %d", c.LoginRateLimitAllowedPerMin))
	}

	return errors.Join(errs...)
}
