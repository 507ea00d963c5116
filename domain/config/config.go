// Package config provides the configuration model of the support workflow.
package config

import "time"

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	Agent         AgentSettings       `json:"agent" yaml:"agent"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Engine        EngineConfig        `json:"engine" yaml:"engine"`
	Resilience    ResilienceConfig    `json:"resilience" yaml:"resilience"`
	Checkpoint    CheckpointConfig    `json:"checkpoint" yaml:"checkpoint"`
	Cache         CacheConfig         `json:"cache" yaml:"cache"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	MCP           MCPConfig           `json:"mcp" yaml:"mcp"`
}

// AgentSettings identifies the agent.
type AgentSettings struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is json or console.
	Format  string `json:"format,omitempty" yaml:"format,omitempty"`
	NoColor bool   `json:"no_color,omitempty" yaml:"no_color,omitempty"`
}

// EngineConfig configures request processing.
type EngineConfig struct {
	// RequestTimeout bounds one request end to end; zero disables it.
	RequestTimeout Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
	// AbilityTimeout bounds a single ability call.
	AbilityTimeout Duration `json:"ability_timeout,omitempty" yaml:"ability_timeout,omitempty"`
	// MaxConcurrentRequests bounds batch processing.
	MaxConcurrentRequests int `json:"max_concurrent_requests,omitempty" yaml:"max_concurrent_requests,omitempty"`
}

// ResilienceConfig configures the ability executor.
type ResilienceConfig struct {
	Retry          RetryConfig          `json:"retry,omitempty" yaml:"retry,omitempty"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
	Bulkhead       BulkheadConfig       `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
	RateLimit      RateLimitConfig      `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// RetryConfig configures retry of retryable abilities.
type RetryConfig struct {
	MaxAttempts  int      `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
	Multiplier   float64  `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// CircuitBreakerConfig configures the per-backend breaker.
type CircuitBreakerConfig struct {
	// Threshold is consecutive failures before opening.
	Threshold int      `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Timeout   Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// BulkheadConfig bounds concurrent ability calls per backend.
type BulkheadConfig struct {
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
}

// RateLimitConfig limits ability calls per backend. Zero rate disables it.
type RateLimitConfig struct {
	Rate  int `json:"rate,omitempty" yaml:"rate,omitempty"`
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
	BackendNone     = "none"
)

// CheckpointConfig selects where checkpoints are kept.
type CheckpointConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	// DSN is used by sqlite and postgres.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Path is the badger data directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Address is the redis host:port.
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// CacheConfig selects the ability result cache.
type CacheConfig struct {
	// Backend is none, memory, redis or badger.
	Backend string   `json:"backend" yaml:"backend"`
	TTL     Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	MaxSize int      `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	Address string   `json:"address,omitempty" yaml:"address,omitempty"`

	// Path is the badger directory; empty keeps the cache in memory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	// Exporter is none, stdout or otlp.
	Exporter    string  `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Endpoint    string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure    bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRate  float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Environment string  `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	// Transport is stdio or http.
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`
	Addr      string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Agent: AgentSettings{Name: "Langie", Version: "1.0.0"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Engine: EngineConfig{
			AbilityTimeout:        Duration(10 * time.Second),
			MaxConcurrentRequests: 8,
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: Duration(100 * time.Millisecond),
				Multiplier:   2.0,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Threshold: 5,
				Timeout:   Duration(30 * time.Second),
			},
			Bulkhead: BulkheadConfig{MaxConcurrent: 32},
		},
		Checkpoint: CheckpointConfig{
			Backend:   BackendMemory,
			KeyPrefix: "supportflow:",
		},
		Cache: CacheConfig{
			Backend: BackendMemory,
			TTL:     Duration(5 * time.Minute),
			MaxSize: 1024,
		},
		Observability: ObservabilityConfig{
			Exporter:   "none",
			SampleRate: 1.0,
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Addr:      ":8080",
		},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
