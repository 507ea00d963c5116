// Package backend implements the Common and Atlas ability clients: a
// registry of handlers per backend group with a fallback for abilities that
// are declared in the stage table but have no dedicated handler yet.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/cache"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
	"github.com/felixgeelhaar/supportflow/infrastructure/logging"
	"github.com/felixgeelhaar/supportflow/infrastructure/resilience"
)

// KeyFunc derives a cache key from an ability context. An empty key skips the cache.
type KeyFunc func(in ability.Context) string

// Client executes the abilities of one backend group.
type Client struct {
	backend  workflow.Backend
	handlers map[string]ability.Handler
	fallback func(a workflow.Ability) ability.Handler
	executor *resilience.Executor

	retryable map[string]bool
	cacheKeys map[string]KeyFunc
	cache     cache.Cache
	cacheTTL  time.Duration

	connect    func(ctx context.Context) error
	disconnect func(ctx context.Context) error

	mu   sync.Mutex
	refs int
}

// Option configures a Client.
type Option func(*Client)

// WithExecutor sets the resilience executor used for every call.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = e
	}
}

// WithHandler registers or replaces the handler for an ability.
func WithHandler(name string, h ability.Handler) Option {
	return func(c *Client) {
		c.handlers[name] = h
	}
}

// WithRetryable marks abilities safe to retry.
func WithRetryable(names ...string) Option {
	return func(c *Client) {
		for _, n := range names {
			c.retryable[n] = true
		}
	}
}

// WithCache memoizes the results of abilities that registered a KeyFunc.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// WithConnector sets the functions run when the first session opens and the
// last one closes.
func WithConnector(connect, disconnect func(ctx context.Context) error) Option {
	return func(c *Client) {
		c.connect = connect
		c.disconnect = disconnect
	}
}

// NewClient creates a client for backend with no handlers registered.
func NewClient(backend workflow.Backend, opts ...Option) *Client {
	c := &Client{
		backend:   backend,
		handlers:  make(map[string]ability.Handler),
		retryable: make(map[string]bool),
		cacheKeys: make(map[string]KeyFunc),
	}
	c.fallback = c.defaultHandler
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		c.executor = resilience.NewDefaultExecutor()
	}
	return c
}

// Register adds a handler unless one was already supplied through WithHandler.
func (c *Client) Register(name string, h ability.Handler) {
	if _, ok := c.handlers[name]; !ok {
		c.handlers[name] = h
	}
}

// Cacheable registers a cache key function for name.
func (c *Client) Cacheable(name string, key KeyFunc) {
	c.cacheKeys[name] = key
}

// Backend returns the group this client serves.
func (c *Client) Backend() workflow.Backend {
	return c.backend
}

// Handles reports whether name has a dedicated handler.
func (c *Client) Handles(name string) bool {
	_, ok := c.handlers[name]
	return ok
}

// Connect opens a session. Sessions are reference counted so concurrent
// requests sharing the client never release each other's connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 && c.connect != nil {
		if err := c.connect(ctx); err != nil {
			return fmt.Errorf("connect %s backend: %w", c.backend, err)
		}
		logging.Debug().Add(logging.Backend(string(c.backend))).Msg("backend connected")
	}
	c.refs++
	return nil
}

// Disconnect closes a session opened by Connect. Extra calls are ignored.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return nil
	}
	c.refs--
	if c.refs == 0 && c.disconnect != nil {
		if err := c.disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect %s backend: %w", c.backend, err)
		}
		logging.Debug().Add(logging.Backend(string(c.backend))).Msg("backend disconnected")
	}
	return nil
}

// Connected reports whether at least one session is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs > 0
}

// Execute runs ability a with context in.
func (c *Client) Execute(ctx context.Context, a workflow.Ability, in ability.Context) (ability.Result, error) {
	if !c.Connected() {
		return nil, fmt.Errorf("%w: %s backend, ability %s", ability.ErrNotConnected, c.backend, a.Name)
	}
	if a.Backend != c.backend {
		return nil, ability.MismatchError(a, c.backend)
	}

	h, ok := c.handlers[a.Name]
	if !ok {
		h = c.fallback(a)
	}

	key := c.cacheKey(a.Name, in)
	if key != "" {
		if r, hit := c.cached(ctx, key); hit {
			logging.Debug().
				Add(logging.Ability(a.Name)).
				Add(logging.Cached(true)).
				Msg("ability result served from cache")
			return c.stamp(a, r), nil
		}
	}

	r, err := c.executor.Execute(ctx, a.Name, c.retryable[a.Name], func(ctx context.Context) (ability.Result, error) {
		return invoke(ctx, h, in)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ability.ErrHandlerFailure, a.Name, err)
	}

	r = c.stamp(a, r)
	if key != "" {
		c.store(ctx, key, r)
	}
	return r, nil
}

func invoke(ctx context.Context, h ability.Handler, in ability.Context) (r ability.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return h(ctx, in)
}

// stamp copies r and records which ability and backend produced it.
func (c *Client) stamp(a workflow.Ability, r ability.Result) ability.Result {
	out := make(ability.Result, len(r)+3)
	for k, v := range r {
		out[k] = v
	}
	if _, ok := out[ability.KeyAbility]; !ok {
		out[ability.KeyAbility] = a.Name
	}
	if _, ok := out[ability.KeyBackend]; !ok {
		out[ability.KeyBackend] = string(c.backend)
	}
	if _, ok := out[ability.KeyStatus]; !ok {
		out[ability.KeyStatus] = ability.StatusCompleted
	}
	return out
}

func (c *Client) defaultHandler(a workflow.Ability) ability.Handler {
	return func(context.Context, ability.Context) (ability.Result, error) {
		return ability.Result{
			ability.KeyAbility:   a.Name,
			ability.KeyBackend:   string(c.backend),
			ability.KeyStatus:    ability.StatusCompleted,
			ability.KeyTimestamp: ability.Timestamp(time.Now()),
			"result":             fmt.Sprintf("%s executed", a.Name),
		}, nil
	}
}

func (c *Client) cacheKey(name string, in ability.Context) string {
	if c.cache == nil {
		return ""
	}
	fn, ok := c.cacheKeys[name]
	if !ok {
		return ""
	}
	k := fn(in)
	if k == "" {
		return ""
	}
	return strings.Join([]string{string(c.backend), name, k}, ":")
}

func (c *Client) cached(ctx context.Context, key string) (ability.Result, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logging.Warn().Add(logging.Str("key", key)).Add(logging.ErrorField(err)).Msg("cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var r ability.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false
	}
	return r, true
}

func (c *Client) store(ctx context.Context, key string, r ability.Result) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, cache.SetOptions{TTL: c.cacheTTL}); err != nil {
		logging.Warn().Add(logging.Str("key", key)).Add(logging.ErrorField(err)).Msg("cache write failed")
	}
}
