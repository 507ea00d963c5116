package resilience

import "time"

// Option configures an ExecutorConfig.
type Option func(*ExecutorConfig)

// WithMaxConcurrent sets the bulkhead size.
func WithMaxConcurrent(n int) Option {
	return func(c *ExecutorConfig) {
		c.MaxConcurrent = n
	}
}

// WithCircuitBreaker sets the failure threshold and open duration.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *ExecutorConfig) {
		c.CircuitBreakerThreshold = threshold
		c.CircuitBreakerTimeout = timeout
	}
}

// WithRetry sets the attempts and initial delay for retryable abilities.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *ExecutorConfig) {
		c.RetryMaxAttempts = attempts
		c.RetryInitialDelay = delay
	}
}

// WithAbilityTimeout sets the per-ability timeout.
func WithAbilityTimeout(d time.Duration) Option {
	return func(c *ExecutorConfig) {
		c.AbilityTimeout = d
	}
}

// WithRateLimit sets calls per second per ability and the burst size.
func WithRateLimit(rate, burst int) Option {
	return func(c *ExecutorConfig) {
		c.RateLimit = rate
		c.RateBurst = burst
	}
}

// NewExecutorWithOptions applies opts to the defaults and builds an executor.
func NewExecutorWithOptions(opts ...Option) *Executor {
	config := DefaultExecutorConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return NewExecutor(config)
}
