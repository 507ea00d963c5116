package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the dotted path to the invalid field.
	Path    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var (
	validLevels    = []string{"", "trace", "debug", "info", "warn", "warning", "error"}
	validFormats   = []string{"", "json", "console"}
	validCkpt      = []string{BackendMemory, BackendSQLite, BackendPostgres, BackendRedis, BackendBadger, BackendNone}
	validCaches    = []string{"", BackendNone, BackendMemory, BackendRedis, BackendBadger}
	validExporters = []string{"", "none", "stdout", "otlp"}
	validMCP       = []string{"", "stdio", "http"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks c and returns every problem found.
func (c AppConfig) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if c.Agent.Name == "" {
		add("agent.name", "name is required")
	}

	if !oneOf(strings.ToLower(c.Logging.Level), validLevels) {
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, validFormats) {
		add("logging.format", "must be json or console, got %q", c.Logging.Format)
	}

	if c.Engine.RequestTimeout < 0 {
		add("engine.request_timeout", "must not be negative")
	}
	if c.Engine.AbilityTimeout < 0 {
		add("engine.ability_timeout", "must not be negative")
	}
	if c.Engine.MaxConcurrentRequests < 0 {
		add("engine.max_concurrent_requests", "must not be negative")
	}

	r := c.Resilience
	if r.Retry.MaxAttempts < 0 {
		add("resilience.retry.max_attempts", "must not be negative")
	}
	if r.Retry.Multiplier != 0 && r.Retry.Multiplier < 1 {
		add("resilience.retry.multiplier", "must be at least 1")
	}
	if r.CircuitBreaker.Threshold < 0 {
		add("resilience.circuit_breaker.threshold", "must not be negative")
	}
	if r.Bulkhead.MaxConcurrent < 0 {
		add("resilience.bulkhead.max_concurrent", "must not be negative")
	}
	if r.RateLimit.Rate < 0 || r.RateLimit.Burst < 0 {
		add("resilience.rate_limit", "rate and burst must not be negative")
	}

	switch cp := c.Checkpoint; {
	case !oneOf(cp.Backend, validCkpt):
		add("checkpoint.backend", "unknown backend %q", cp.Backend)
	case cp.Backend == BackendPostgres && cp.DSN == "":
		add("checkpoint.dsn", "dsn is required for postgres")
	case cp.Backend == BackendRedis && cp.Address == "":
		add("checkpoint.address", "address is required for redis")
	case cp.Backend == BackendBadger && cp.Path == "":
		add("checkpoint.path", "path is required for badger")
	}

	if !oneOf(c.Cache.Backend, validCaches) {
		add("cache.backend", "unknown backend %q", c.Cache.Backend)
	} else if c.Cache.Backend == BackendRedis && c.Cache.Address == "" {
		add("cache.address", "address is required for redis")
	}

	o := c.Observability
	if !oneOf(o.Exporter, validExporters) {
		add("observability.exporter", "unknown exporter %q", o.Exporter)
	}
	if o.Exporter == "otlp" && o.Endpoint == "" {
		add("observability.endpoint", "endpoint is required for otlp")
	}
	if o.SampleRate < 0 || o.SampleRate > 1 {
		add("observability.sample_rate", "must be between 0 and 1")
	}

	if !oneOf(c.MCP.Transport, validMCP) {
		add("mcp.transport", "must be stdio or http, got %q", c.MCP.Transport)
	}

	return errs
}
