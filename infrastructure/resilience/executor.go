// Package resilience wraps ability calls with fortify's bulkhead, timeout,
// circuit breaker, retry and rate limiting patterns.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/supportflow/domain/ability"
)

// Call is one guarded ability invocation.
type Call func(ctx context.Context) (ability.Result, error)

// Executor applies resilience patterns around ability calls of one backend group.
// The bulkhead is shared by the group; circuit breakers are kept per ability.
type Executor struct {
	bulkhead bulkhead.Bulkhead[ability.Result]
	retry    retry.Retry[ability.Result]
	limiter  ratelimit.RateLimiter
	timeout  time.Duration

	breakerConfig circuitbreaker.Config
	breakers      map[string]circuitbreaker.CircuitBreaker[ability.Result]
	mu            sync.Mutex
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent calls across all requests.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts bounds attempts for retryable abilities.
	RetryMaxAttempts int

	// RetryInitialDelay is the first backoff delay.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// AbilityTimeout bounds a single ability call.
	AbilityTimeout time.Duration

	// RateLimit is calls per second per ability; zero disables limiting.
	RateLimit int

	// RateBurst is the token bucket capacity.
	RateBurst int
}

// DefaultExecutorConfig returns the defaults used by the engine.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           32,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		AbilityTimeout:          10 * time.Second,
	}
}

// NewExecutor creates an executor from config.
func NewExecutor(config ExecutorConfig) *Executor {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}
	threshold := config.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	attempts := config.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := config.AbilityTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	e := &Executor{
		bulkhead: bulkhead.New[ability.Result](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breakerConfig: circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- positive, bounded above
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- positive, bounded above
			},
		},
		breakers: make(map[string]circuitbreaker.CircuitBreaker[ability.Result]),
		retry: retry.New[ability.Result](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  config.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    config.RetryBackoffMultiplier,
		}),
		timeout: timeout,
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = config.RateLimit
		}
		e.limiter = ratelimit.New(&ratelimit.Config{
			Rate:  config.RateLimit,
			Burst: burst,
		})
	}
	return e
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// Timeout returns the per-ability timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs call for the named ability.
// Composition order: rate limit, bulkhead, timeout, circuit breaker, retry (retryable only).
func (e *Executor) Execute(ctx context.Context, name string, retryable bool, call Call) (ability.Result, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, name); err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", name, err)
		}
	}

	return e.bulkhead.Execute(ctx, func(ctx context.Context) (ability.Result, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		return e.breaker(name).Execute(ctx, func(ctx context.Context) (ability.Result, error) {
			if retryable {
				return e.retry.Do(ctx, func(ctx context.Context) (ability.Result, error) {
					return bounded(ctx, call)
				})
			}
			return bounded(ctx, call)
		})
	})
}

// CircuitBreakerState returns the state of the named ability's breaker.
func (e *Executor) CircuitBreakerState(name string) circuitbreaker.State {
	return e.breaker(name).State()
}

// breaker returns the circuit breaker for name, creating it on first use.
func (e *Executor) breaker(name string) circuitbreaker.CircuitBreaker[ability.Result] {
	e.mu.Lock()
	defer e.mu.Unlock()

	cb, ok := e.breakers[name]
	if !ok {
		cb = circuitbreaker.New[ability.Result](e.breakerConfig)
		e.breakers[name] = cb
	}
	return cb
}

type outcome struct {
	result ability.Result
	err    error
}

// bounded returns when call finishes or ctx is done, whichever comes first,
// so a handler that ignores its context still fails at the deadline.
func bounded(ctx context.Context, call Call) (ability.Result, error) {
	done := make(chan outcome, 1)
	go func() {
		r, err := call(ctx)
		done <- outcome{result: r, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
