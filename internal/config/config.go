package config

import "time"

// Config is the top-level gateway configuration, loaded by Load() from
// config.yaml plus TENANTGW_-prefixed environment overrides.
type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	CORS    CORSConfig    `mapstructure:"cors" yaml:"cors"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Pool        PoolConfig        `mapstructure:"pool" yaml:"pool"`
	Breaker     BreakerConfig     `mapstructure:"breaker" yaml:"breaker"`
	ResultCache ResultCacheConfig `mapstructure:"result_cache" yaml:"result_cache"`
	Directory   DirectoryConfig   `mapstructure:"directory" yaml:"directory"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring" yaml:"monitoring"`
}

// MonitoringConfig controls the correlation/tracing middleware's request
// trace persistence and the OpenTelemetry exporter, independent of the
// always-on Prometheus metrics.
type MonitoringConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// CacheConfig handles Valkey/Redis caching configuration.
type CacheConfig struct {
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
	Mode     string   `mapstructure:"mode" yaml:"mode"` // single, cluster, noop
}

// CORSConfig handles Cross-Origin Resource Sharing.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// JWTConfig configures the self-issued session token codec.
type JWTConfig struct {
	Secret       string        `mapstructure:"secret" yaml:"secret"`
	SessionTTL   time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

// RateLimitConfig configures a fixed-window request counter: at most
// MaxRequests per WindowDuration, after which the caller is blocked for
// BlockDuration.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxRequests    int           `mapstructure:"max_requests" yaml:"max_requests"`
	WindowDuration time.Duration `mapstructure:"window_duration" yaml:"window_duration"`
	BlockDuration  time.Duration `mapstructure:"block_duration" yaml:"block_duration"`
}

// AuthConfig configures authentication for the gateway: local password/JWT
// sessions, API keys and, optionally, an LDAP directory used to pre-approve
// access requests.
type AuthConfig struct {
	Enabled           bool            `mapstructure:"enabled" yaml:"enabled"`
	StrictAPIKeyMode  bool            `mapstructure:"strict_api_key_mode" yaml:"strict_api_key_mode"`
	JWT               JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	APIKeyRateLimit   RateLimitConfig `mapstructure:"api_key_rate_limit" yaml:"api_key_rate_limit"`
	PBKDF2Iterations  int             `mapstructure:"pbkdf2_iterations" yaml:"pbkdf2_iterations"`
}

// DirectoryConfig configures the optional LDAP directory lookup used to
// pre-approve access requests against an external group membership source.
type DirectoryConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	UseTLS       bool   `mapstructure:"use_tls" yaml:"use_tls"`
	BindDN       string `mapstructure:"bind_dn" yaml:"bind_dn"`
	BindPassword string `mapstructure:"bind_password" yaml:"bind_password"`
	BaseDN       string `mapstructure:"base_dn" yaml:"base_dn"`
	GroupFilter  string `mapstructure:"group_filter" yaml:"group_filter"`
}

// PoolConfig sets the limits every per-tenant connection pool is created
// with. The pool manager applies MaxConns and AcquireTimeout; a deployment's
// own MaxConns does not override MaxConns, and MinConns, IdleTimeout and
// HealthCheck are only validated at load time, not used by the pool.
type PoolConfig struct {
	MinConns       int           `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConns       int           `mapstructure:"max_conns" yaml:"max_conns"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	HealthCheck    time.Duration `mapstructure:"health_check_interval" yaml:"health_check_interval"`
}

// BreakerConfig sets the defaults every per-tenant circuit breaker is
// created with.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	OpenDuration     time.Duration `mapstructure:"open_duration" yaml:"open_duration"`
	HalfOpenProbes   int           `mapstructure:"half_open_probes" yaml:"half_open_probes"`
}

// ResultCacheConfig sets the TTLs of the Valkey-backed result and schema
// caches. ResultMaxItems is loaded but not enforced: entries leave the cache
// only by TTL or explicit invalidation.
type ResultCacheConfig struct {
	ResultTTL      time.Duration `mapstructure:"result_ttl" yaml:"result_ttl"`
	ResultMaxItems int           `mapstructure:"result_max_items" yaml:"result_max_items"`
	SchemaTTL      time.Duration `mapstructure:"schema_ttl" yaml:"schema_ttl"`
}
