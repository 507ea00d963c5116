package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/supportflow/application"
	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/cache"
	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
	"github.com/felixgeelhaar/supportflow/domain/config"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/backend"
	"github.com/felixgeelhaar/supportflow/infrastructure/logging"
	"github.com/felixgeelhaar/supportflow/infrastructure/observability"
	"github.com/felixgeelhaar/supportflow/infrastructure/resilience"
	"github.com/felixgeelhaar/supportflow/infrastructure/storage/badger"
	"github.com/felixgeelhaar/supportflow/infrastructure/storage/memory"
	"github.com/felixgeelhaar/supportflow/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/supportflow/infrastructure/storage/redis"
	"github.com/felixgeelhaar/supportflow/infrastructure/storage/sqlite"
)

// runtime holds everything built from one configuration.
type runtime struct {
	config   config.AppConfig
	engine   *application.Engine
	clients  []ability.Client
	provider *observability.Provider
	closers  []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *runtime) onClose(fn func(context.Context) error) {
	r.closers = append(r.closers, fn)
}

// setupLogging installs the process logger described by cfg.
func setupLogging(cfg config.LoggingConfig, out io.Writer) {
	logging.Init(logging.Config{
		Level:   cfg.Level,
		Format:  cfg.Format,
		NoColor: cfg.NoColor,
		Output:  out,
	})
}

// buildRuntime wires logging, telemetry, storage and clients into an engine.
func buildRuntime(ctx context.Context, cfg config.AppConfig, answers backend.AnswerSource, logOut io.Writer) (rt *runtime, err error) {
	setupLogging(cfg.Logging, logOut)

	rt = &runtime{config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	rt.provider, err = newProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	rt.onClose(rt.provider.Shutdown)

	metrics, err := observability.NewMetrics(rt.provider.Meter())
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	store, err := rt.checkpointStore(ctx, cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	resultCache, err := rt.abilityCache(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("ability cache: %w", err)
	}

	opts := []backend.Option{backend.WithExecutor(newExecutor(cfg))}
	if resultCache != nil {
		opts = append(opts, backend.WithCache(resultCache, time.Duration(cfg.Cache.TTL)))
	}
	rt.clients = []ability.Client{
		backend.NewCommon(backend.WithExecutor(newExecutor(cfg))),
		backend.NewAtlas(backend.AtlasConfig{Answers: answers}, opts...),
	}

	rt.engine, err = application.NewEngineWithOptions(
		application.WithClients(rt.clients...),
		application.WithCheckpointStore(store),
		application.WithRequestTimeout(time.Duration(cfg.Engine.RequestTimeout)),
		application.WithMaxConcurrent(cfg.Engine.MaxConcurrentRequests),
		application.WithTracer(rt.provider.Tracer()),
		application.WithMetrics(metrics),
		application.WithAgent(cfg.Agent.Name, cfg.Agent.Version),
	)
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Add(logging.Component("runtime")).
		Add(logging.Str("checkpoint_backend", cfg.Checkpoint.Backend)).
		Add(logging.Str("cache_backend", cfg.Cache.Backend)).
		Add(logging.Str("exporter", cfg.Observability.Exporter)).
		Msg("runtime ready")
	return rt, nil
}

func newProvider(ctx context.Context, cfg config.AppConfig) (*observability.Provider, error) {
	obs := observability.DefaultConfig()
	opts := []observability.Option{
		observability.WithServiceName(cfg.Agent.Name),
		observability.WithServiceVersion(cfg.Agent.Version),
		observability.WithSampleRate(cfg.Observability.SampleRate),
	}
	if cfg.Observability.Environment != "" {
		opts = append(opts, observability.WithEnvironment(cfg.Observability.Environment))
	}
	switch observability.ExporterType(cfg.Observability.Exporter) {
	case observability.ExporterStdout:
		opts = append(opts, observability.WithStdout())
	case observability.ExporterOTLP:
		opts = append(opts, observability.WithOTLP(cfg.Observability.Endpoint, cfg.Observability.Insecure))
	}
	for _, opt := range opts {
		opt(&obs)
	}
	return observability.NewProvider(ctx, obs)
}

// newExecutor builds one resilience executor; each backend gets its own so a
// tripped breaker on one group leaves the other untouched.
func newExecutor(cfg config.AppConfig) *resilience.Executor {
	r := cfg.Resilience
	return resilience.NewExecutor(resilience.ExecutorConfig{
		MaxConcurrent:           r.Bulkhead.MaxConcurrent,
		CircuitBreakerThreshold: r.CircuitBreaker.Threshold,
		CircuitBreakerTimeout:   time.Duration(r.CircuitBreaker.Timeout),
		RetryMaxAttempts:        r.Retry.MaxAttempts,
		RetryInitialDelay:       time.Duration(r.Retry.InitialDelay),
		RetryBackoffMultiplier:  r.Retry.Multiplier,
		AbilityTimeout:          time.Duration(cfg.Engine.AbilityTimeout),
		RateLimit:               r.RateLimit.Rate,
		RateBurst:               r.RateLimit.Burst,
	})
}

func (r *runtime) checkpointStore(ctx context.Context, cfg config.CheckpointConfig) (checkpoint.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		sc := sqlite.DefaultConfig()
		if cfg.DSN != "" {
			sc.DSN = cfg.DSN
		}
		s, err := sqlite.NewCheckpointStore(sc)
		if err != nil {
			return nil, err
		}
		r.onClose(func(context.Context) error { return s.Close() })
		return s, nil

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DSN, postgres.DefaultConfig())
		if err != nil {
			return nil, err
		}
		r.onClose(func(context.Context) error {
			pool.Close()
			return nil
		})
		s := postgres.NewCheckpointStore(pool, "")
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		return s, nil

	case config.BackendRedis:
		client, rc, err := redis.Connect(ctx, redis.DefaultConfig(),
			redis.WithAddress(cfg.Address),
			redis.WithPassword(cfg.Password),
			redis.WithKeyPrefix(cfg.KeyPrefix),
		)
		if err != nil {
			return nil, err
		}
		r.onClose(closeRedis(client))
		return redis.NewCheckpointStore(client, rc.KeyPrefix), nil

	case config.BackendBadger:
		db, bc, err := badger.Open(badger.DefaultConfig(), badger.WithDir(cfg.Path))
		if err != nil {
			return nil, err
		}
		r.onClose(func(context.Context) error { return db.Close() })
		return badger.NewCheckpointStore(db, bc.KeyPrefix), nil

	default:
		return memory.NewCheckpointStore(), nil
	}
}

// abilityCache returns nil when caching is disabled.
func (r *runtime) abilityCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewCache(memory.WithMaxSize(cfg.MaxSize)), nil
	case config.BackendRedis:
		client, rc, err := redis.Connect(ctx, redis.DefaultConfig(), redis.WithAddress(cfg.Address))
		if err != nil {
			return nil, err
		}
		r.onClose(closeRedis(client))
		return redis.NewCacheFromClient(client, rc.KeyPrefix), nil
	case config.BackendBadger:
		opts := []badger.Option{badger.WithKeyPrefix("supportflow/cache/")}
		if cfg.Path != "" {
			opts = append(opts, badger.WithDir(cfg.Path))
		} else {
			opts = append(opts, badger.WithInMemory())
		}
		db, bc, err := badger.Open(badger.DefaultConfig(), opts...)
		if err != nil {
			return nil, err
		}
		r.onClose(func(context.Context) error { return db.Close() })
		return badger.NewCache(db, bc.KeyPrefix), nil
	default:
		return nil, nil
	}
}

func closeRedis(client *goredis.Client) func(context.Context) error {
	return func(context.Context) error { return client.Close() }
}

// describeBackends lists the ability names served by each group.
func describeBackends(info workflow.Info) map[workflow.Backend]int {
	out := make(map[workflow.Backend]int, len(info.Abilities))
	for b, names := range info.Abilities {
		out[b] = len(names)
	}
	return out
}
