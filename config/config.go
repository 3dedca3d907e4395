// Package config loads gateway configuration with the teacher's three-layer
// priority: defaults, then environment variables, then functional options.
//
// Grounded on core.Config/core.DefaultConfig/core.LoadFromEnv/core.NewConfig,
// generalized from the agent-framework's Name/Port/AI/Discovery sections to
// the gateway's Auth/Resilience/RateLimit/Cache/ServiceDiscovery/CORS
// sections, and extended with YAML file loading (gopkg.in/yaml.v3) where the
// teacher only supports JSON.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the gateway process.
type Config struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	Auth             AuthConfig             `yaml:"auth"`
	Resilience       ResilienceConfig       `yaml:"resilience"`
	RateLimit        RateLimitConfig        `yaml:"rate_limit"`
	Cache            CacheConfig            `yaml:"cache"`
	ServiceDiscovery ServiceDiscoveryConfig `yaml:"service_discovery"`
	CORS             CORSConfig             `yaml:"cors"`
	Telemetry        TelemetryConfig        `yaml:"telemetry"`
	Logging          LoggingConfig          `yaml:"logging"`
}

// AuthConfig configures the token verifier (C1).
type AuthConfig struct {
	SharedSecret string `yaml:"shared_secret"`
}

// ResilienceConfig configures the default retry/timeout policy and circuit
// breaker thresholds (C5/C6), with optional per-service overrides.
type ResilienceConfig struct {
	MaxRetries       int           `yaml:"max_retries"`
	BackoffMs        int           `yaml:"backoff_ms"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	HalfOpenTimeout  time.Duration `yaml:"half_open_timeout"`
}

// RateLimitConfig configures the quota keeper (C3).
type RateLimitConfig struct {
	DailyLimit  int    `yaml:"daily_limit"`
	HourlyLimit int    `yaml:"hourly_limit"` // 0 disables the secondary bucket
	RedisURL    string `yaml:"redis_url"`    // empty: in-process only
}

// CacheConfig configures the plan/result cache (C4) and the orchestrator's
// plan-cache TTL.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	MaxBytes   int64         `yaml:"max_bytes"`
	PlanTTL    time.Duration `yaml:"plan_ttl"`
}

// ServiceDiscoveryConfig maps downstream service names to base URLs for the
// httpservice.Client (C's ServiceClient implementation).
type ServiceDiscoveryConfig struct {
	ServiceURLs map[string]string `yaml:"service_urls"`
}

// CORSConfig controls cross-origin access to the HTTP surface.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TelemetryConfig controls OpenTelemetry tracer/meter wiring.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Address: "0.0.0.0",
		Port:    8080,
		Auth:    AuthConfig{SharedSecret: "change-me"},
		Resilience: ResilienceConfig{
			MaxRetries:       3,
			BackoffMs:        100,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			HalfOpenTimeout:  60 * time.Second,
		},
		RateLimit: RateLimitConfig{DailyLimit: 1000, HourlyLimit: 0},
		Cache:     CacheConfig{MaxEntries: 1000, MaxBytes: 100 * 1024 * 1024, PlanTTL: time.Hour},
		ServiceDiscovery: ServiceDiscoveryConfig{
			ServiceURLs: map[string]string{},
		},
		CORS:      CORSConfig{Enabled: false},
		Telemetry: TelemetryConfig{Enabled: false, ServiceName: "intent-gateway"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// LoadFromEnv overlays environment variables onto c (medium priority).
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("INTENTGW_ADDRESS"); v != "" {
		c.Address = v
	}
	if v := os.Getenv("INTENTGW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("INTENTGW_AUTH_SECRET"); v != "" {
		c.Auth.SharedSecret = v
	}
	if v := os.Getenv("INTENTGW_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.MaxRetries = n
		}
	}
	if v := os.Getenv("INTENTGW_RETRY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Resilience.Timeout = d
		}
	}
	if v := os.Getenv("INTENTGW_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.DailyLimit = n
		}
	}
	if v := os.Getenv("INTENTGW_HOURLY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.HourlyLimit = n
		}
	}
	if v := os.Getenv("INTENTGW_REDIS_URL"); v != "" {
		c.RateLimit.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.RateLimit.RedisURL = v
	}
	if v := os.Getenv("INTENTGW_CORS_ORIGINS"); v != "" {
		c.CORS.Enabled = true
		c.CORS.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("INTENTGW_OTEL_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.OTLPEndpoint = v
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("INTENTGW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("INTENTGW_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// LoadFile merges a YAML file's contents into c. File settings sit between
// env vars and functional options in the priority order when called from
// Load's WithFile option.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// Option is a functional option for Load, applied after defaults and
// environment variables (highest priority).
type Option func(*Config) error

// WithFile loads path as YAML and merges it into the config.
func WithFile(path string) Option {
	return func(c *Config) error { return c.LoadFile(path) }
}

// WithPort overrides the listen port.
func WithPort(port int) Option {
	return func(c *Config) error { c.Port = port; return nil }
}

// WithServiceURL registers a downstream service name -> base URL mapping.
func WithServiceURL(name, url string) Option {
	return func(c *Config) error {
		if c.ServiceDiscovery.ServiceURLs == nil {
			c.ServiceDiscovery.ServiceURLs = map[string]string{}
		}
		c.ServiceDiscovery.ServiceURLs[name] = url
		return nil
	}
}

// Validate checks invariants that must hold before the process starts.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.RateLimit.DailyLimit < 1 {
		return fmt.Errorf("config: daily_limit must be positive")
	}
	if c.Resilience.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must be non-negative")
	}
	return nil
}

// Load builds a Config from defaults, environment variables, and opts, in
// that priority order, then validates the result.
func Load(opts ...Option) (*Config, error) {
	c := Default()
	c.LoadFromEnv()
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
