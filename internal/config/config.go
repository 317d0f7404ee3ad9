package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by Load
const EnvPrefix = "SANKHYA_"

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Identifiers   IdentifiersConfig   `yaml:"identifiers" json:"identifiers"`
	Redis         RedisConfig         `yaml:"redis" json:"redis"`
	Upstream      UpstreamConfig      `yaml:"upstream" json:"upstream"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	ProjectName       string        `yaml:"project_name" json:"project_name" env:"PROJECT_NAME"`
	Version           string        `yaml:"version" json:"version" env:"VERSION"`
	Host              string        `yaml:"host" json:"host" env:"HOST"`
	HTTPPort          int           `yaml:"http_port" json:"http_port" env:"HTTP_PORT"`
	ReadTimeout       time.Duration `yaml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" json:"idle_timeout" env:"IDLE_TIMEOUT"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes" json:"max_header_bytes" env:"MAX_HEADER_BYTES"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	Debug             bool          `yaml:"debug" json:"debug" env:"DEBUG"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level            string            `yaml:"level" json:"level" env:"LOG_LEVEL"`
	Format           string            `yaml:"format" json:"format" env:"LOG_FORMAT"` // json or text
	Output           string            `yaml:"output" json:"output" env:"LOG_OUTPUT"` // stdout, stderr, or file path
	SanitizePatterns []string          `yaml:"sanitize_patterns" json:"sanitize_patterns" env:"LOG_SANITIZE_PATTERNS" envSeparator:","`
	ComponentLevels  map[string]string `yaml:"component_levels" json:"component_levels" env:"LOG_COMPONENT_LEVELS" envSeparator:"," envKeyValSeparator:":"`

	// Rotation applies when Output is a file path
	Rotation RotationConfig `yaml:"rotation" json:"rotation"`

	// Request identifiers attached to every entry; a length of 0 keeps the value whole
	CorrelationIDLength   int  `yaml:"correlation_id_length" json:"correlation_id_length" env:"LOG_CORRELATION_ID_LENGTH"`
	RequestIDLength       int  `yaml:"request_id_length" json:"request_id_length" env:"LOG_REQUEST_ID_LENGTH"`
	IncludeIdempotencyKey bool `yaml:"include_idempotency_key" json:"include_idempotency_key" env:"LOG_INCLUDE_IDEMPOTENCY_KEY"`
	IdempotencyKeyLength  int  `yaml:"idempotency_key_length" json:"idempotency_key_length" env:"LOG_IDEMPOTENCY_KEY_LENGTH"`
}

// RotationConfig contains log file rotation settings
type RotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" json:"max_size_mb" env:"LOG_MAX_SIZE_MB"`
	MaxBackups int  `yaml:"max_backups" json:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int  `yaml:"max_age_days" json:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
	Compress   bool `yaml:"compress" json:"compress" env:"LOG_COMPRESS"`
}

// IdentifiersConfig contains request identifier header settings
type IdentifiersConfig struct {
	CorrelationIDHeader     string `yaml:"correlation_id_header" json:"correlation_id_header" env:"CORRELATION_ID_HEADER"`
	ValidateCorrelationID   bool   `yaml:"validate_correlation_id" json:"validate_correlation_id" env:"VALIDATE_CORRELATION_ID"`
	RequestIDHeader         string `yaml:"request_id_header" json:"request_id_header" env:"REQUEST_ID_HEADER"`
	IdempotencyKeyHeader    string `yaml:"idempotency_key_header" json:"idempotency_key_header" env:"IDEMPOTENCY_KEY_HEADER"`
	IdempotencyKeyMaxLength int    `yaml:"idempotency_key_max_length" json:"idempotency_key_max_length" env:"IDEMPOTENCY_KEY_MAX_LENGTH"`
}

// RedisConfig contains cache connection settings
type RedisConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled" env:"USE_REDIS"`
	URL             string        `yaml:"url" json:"url" env:"REDIS_URL"`
	Password        string        `yaml:"password" json:"password" env:"REDIS_PASSWORD"`
	DialTimeout     time.Duration `yaml:"dial_timeout" json:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	PingTimeout     time.Duration `yaml:"ping_timeout" json:"ping_timeout" env:"REDIS_PING_TIMEOUT"`
	ConnectAttempts uint          `yaml:"connect_attempts" json:"connect_attempts" env:"REDIS_CONNECT_ATTEMPTS"`
	ConnectDelay    time.Duration `yaml:"connect_delay" json:"connect_delay" env:"REDIS_CONNECT_DELAY"`
}

// UpstreamConfig contains settings of the dependency checked by the readiness endpoint
type UpstreamConfig struct {
	ReadyCheckURL      string        `yaml:"ready_check_url" json:"ready_check_url" env:"READY_CHECK_URL"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout" env:"UPSTREAM_TIMEOUT"`
	MaxIdleConns       int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"UPSTREAM_MAX_IDLE_CONNS"`
	BreakerMaxRequests uint32        `yaml:"breaker_max_requests" json:"breaker_max_requests" env:"UPSTREAM_BREAKER_MAX_REQUESTS"`
	BreakerInterval    time.Duration `yaml:"breaker_interval" json:"breaker_interval" env:"UPSTREAM_BREAKER_INTERVAL"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout" json:"breaker_timeout" env:"UPSTREAM_BREAKER_TIMEOUT"`
	BreakerFailures    uint32        `yaml:"breaker_failures" json:"breaker_failures" env:"UPSTREAM_BREAKER_FAILURES"`
}

// ObservabilityConfig contains observability configuration
type ObservabilityConfig struct {
	MetricsEnabled    bool    `yaml:"metrics_enabled" json:"metrics_enabled" env:"METRICS_ENABLED"`
	MetricsPath       string  `yaml:"metrics_path" json:"metrics_path" env:"METRICS_PATH"`
	HealthPath        string  `yaml:"health_path" json:"health_path" env:"HEALTH_PATH"`
	ReadinessPath     string  `yaml:"readiness_path" json:"readiness_path" env:"READINESS_PATH"`
	LivenessPath      string  `yaml:"liveness_path" json:"liveness_path" env:"LIVENESS_PATH"`
	TracingEnabled    bool    `yaml:"tracing_enabled" json:"tracing_enabled" env:"TRACING_ENABLED"`
	TracingEndpoint   string  `yaml:"tracing_endpoint" json:"tracing_endpoint" env:"TRACING_ENDPOINT"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" env:"TRACING_SAMPLE_RATE"`
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Load loads configuration from file with environment variable overrides.
// Environment variables are read after the given .env files are loaded; with
// no files, a .env in the working directory is used when present.
func Load(configPath string, envFiles ...string) (*Config, error) {
	cfg := &Config{}

	// Set defaults
	cfg.setDefaults()

	// Load from file if provided
	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Set as global config
	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()

	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Default returns a validated configuration holding only defaults
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	// Server defaults
	c.Server.ProjectName = "das-sankhya"
	c.Server.Version = "0.1.0"
	c.Server.Host = "0.0.0.0"
	c.Server.HTTPPort = 8080
	c.Server.ReadTimeout = 30 * time.Second
	c.Server.ReadHeaderTimeout = 10 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.IdleTimeout = 120 * time.Second
	c.Server.MaxHeaderBytes = 1 << 20 // 1 MB
	c.Server.ShutdownTimeout = 30 * time.Second

	// Logging defaults
	c.Logging.Level = "info"
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"
	c.Logging.SanitizePatterns = []string{"(?i)password", "(?i)secret", "(?i)authorization"}
	c.Logging.Rotation.MaxSizeMB = 100
	c.Logging.Rotation.MaxBackups = 5
	c.Logging.Rotation.MaxAgeDays = 28
	c.Logging.IncludeIdempotencyKey = true

	// Identifier defaults
	c.Identifiers.CorrelationIDHeader = "X-Correlation-ID"
	c.Identifiers.ValidateCorrelationID = true
	c.Identifiers.RequestIDHeader = "X-Request-ID"
	c.Identifiers.IdempotencyKeyHeader = "Idempotency-Key"
	c.Identifiers.IdempotencyKeyMaxLength = 128

	// Redis defaults
	c.Redis.Enabled = false
	c.Redis.URL = "redis://localhost:6379/0"
	c.Redis.DialTimeout = 5 * time.Second
	c.Redis.PingTimeout = 2 * time.Second
	c.Redis.ConnectAttempts = 3
	c.Redis.ConnectDelay = 500 * time.Millisecond

	// Upstream defaults
	c.Upstream.ReadyCheckURL = "http://localhost:8080/api/v1/microservice"
	c.Upstream.Timeout = 5 * time.Second
	c.Upstream.MaxIdleConns = 100
	c.Upstream.BreakerMaxRequests = 1
	c.Upstream.BreakerInterval = 60 * time.Second
	c.Upstream.BreakerTimeout = 30 * time.Second
	c.Upstream.BreakerFailures = 5

	// Observability defaults
	c.Observability.MetricsEnabled = true
	c.Observability.MetricsPath = "/metrics"
	c.Observability.HealthPath = "/_health"
	c.Observability.ReadinessPath = "/_health/ready"
	c.Observability.LivenessPath = "/_health/live"
	c.Observability.TracingEnabled = false
	c.Observability.TracingEndpoint = "localhost:4318"
	c.Observability.TracingSampleRate = 1.0
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "fatal": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	for component, level := range c.Logging.ComponentLevels {
		if !validLevels[strings.ToLower(level)] {
			return fmt.Errorf("invalid log level for component %s: %s", component, level)
		}
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'text')", c.Logging.Format)
	}
	if c.Logging.Output == "" {
		return fmt.Errorf("log output must not be empty")
	}
	if c.Logging.CorrelationIDLength < 0 || c.Logging.RequestIDLength < 0 || c.Logging.IdempotencyKeyLength < 0 {
		return fmt.Errorf("identifier log lengths must not be negative")
	}

	// Validate identifier headers
	headers := map[string]string{
		"correlation ID":  c.Identifiers.CorrelationIDHeader,
		"request ID":      c.Identifiers.RequestIDHeader,
		"idempotency key": c.Identifiers.IdempotencyKeyHeader,
	}
	seen := make(map[string]string, len(headers))
	for name, header := range headers {
		if header == "" {
			return fmt.Errorf("%s header must not be empty", name)
		}
		canonical := http.CanonicalHeaderKey(header)
		if other, ok := seen[canonical]; ok {
			return fmt.Errorf("%s and %s use the same header %s", other, name, header)
		}
		seen[canonical] = name
	}
	if c.Identifiers.IdempotencyKeyMaxLength <= 0 {
		return fmt.Errorf("idempotency key max length must be positive")
	}

	// Validate redis config
	if c.Redis.Enabled {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis enabled but url not specified")
		}
		if c.Redis.ConnectAttempts == 0 {
			return fmt.Errorf("redis connect attempts must be at least 1")
		}
	}

	// Validate upstream config
	if c.Upstream.ReadyCheckURL != "" {
		u, err := url.Parse(c.Upstream.ReadyCheckURL)
		if err != nil {
			return fmt.Errorf("invalid ready check url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("ready check url must be http or https: %s", c.Upstream.ReadyCheckURL)
		}
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	if c.Upstream.BreakerFailures == 0 {
		return fmt.Errorf("upstream breaker failures must be at least 1")
	}

	// Validate observability config
	if c.Observability.TracingEnabled && c.Observability.TracingEndpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1: %v", c.Observability.TracingSampleRate)
	}

	return nil
}

// loadFromFile loads configuration from a file (YAML or JSON)
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Determine format by extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	return nil
}

// loadDotEnv loads .env files into the process environment.
// Variables already set are not overwritten.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		// The default .env is optional
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return godotenv.Load(files...)
}

// applyEnvOverrides applies environment variable overrides.
// Environment variables are prefixed with SANKHYA_; unset variables keep the current value.
func applyEnvOverrides(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}
