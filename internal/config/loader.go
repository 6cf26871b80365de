package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/platformbuilds/tenant-gateway-core/internal/utils/fswatcher"
)

// Load loads configuration from, in priority order: environment variables,
// the first config.yaml found in /etc/tenant-gateway/, ./configs/ or the
// working directory (searched in that order), then built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/tenant-gateway/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TENANTGW")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Watch starts hot-reloading cfg in place whenever the backing config file
// changes on disk. onReload is invoked (best-effort) after a successful
// reload so callers can swap dependent state (e.g. rate limiter thresholds).
func Watch(configPath string, cfg *Config, onReload func(*Config)) (*fswatcher.Watcher, error) {
	w, err := fswatcher.New(configPath)
	if err != nil {
		return nil, err
	}
	go func() {
		for range w.C {
			reloaded, err := Load()
			if err != nil {
				continue
			}
			*cfg = *reloaded
			if onReload != nil {
				onReload(cfg)
			}
		}
	}()
	return w, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("cache.mode", "single")
	v.SetDefault("cache.nodes", []string{"localhost:6379"})
	v.SetDefault("cache.ttl", 300)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE"})
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.strict_api_key_mode", false)
	v.SetDefault("auth.jwt.session_ttl", 24*time.Hour)
	v.SetDefault("auth.pbkdf2_iterations", 120_000)
	v.SetDefault("auth.api_key_rate_limit.enabled", true)
	v.SetDefault("auth.api_key_rate_limit.max_requests", 600)
	v.SetDefault("auth.api_key_rate_limit.window_duration", time.Minute)
	v.SetDefault("auth.api_key_rate_limit.block_duration", 5*time.Minute)

	v.SetDefault("directory.enabled", false)
	v.SetDefault("directory.port", 636)
	v.SetDefault("directory.use_tls", true)

	v.SetDefault("pool.min_conns", 2)
	v.SetDefault("pool.max_conns", 20)
	v.SetDefault("pool.acquire_timeout", 5*time.Second)
	v.SetDefault("pool.idle_timeout", 10*time.Minute)
	v.SetDefault("pool.health_check_interval", 30*time.Second)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.open_duration", 30*time.Second)
	v.SetDefault("breaker.half_open_probes", 1)

	v.SetDefault("result_cache.result_ttl", 30*time.Minute)
	v.SetDefault("result_cache.result_max_items", 10_000)
	v.SetDefault("result_cache.schema_ttl", time.Hour)

	v.SetDefault("monitoring.tracing_enabled", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4317")
}

func validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Pool.MaxConns <= 0 {
		return fmt.Errorf("pool.max_conns must be positive")
	}
	if cfg.Pool.MinConns > cfg.Pool.MaxConns {
		return fmt.Errorf("pool.min_conns (%d) cannot exceed pool.max_conns (%d)", cfg.Pool.MinConns, cfg.Pool.MaxConns)
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be positive")
	}
	if cfg.Auth.Enabled && cfg.Auth.JWT.Secret == "" {
		return fmt.Errorf("auth.jwt.secret is required when auth is enabled")
	}
	return nil
}
