// Package badger provides an embedded BadgerDB checkpoint store and result
// cache for single-node deployments.
package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrConnectionFailed is returned when the database cannot be opened.
var ErrConnectionFailed = errors.New("badger: open failed")

// Config configures the database.
type Config struct {
	// Dir holds the data files; ignored when InMemory is set.
	Dir string

	InMemory   bool
	SyncWrites bool

	// KeyPrefix namespaces every key.
	KeyPrefix string

	// Logger is badger's internal logger; nil silences it.
	Logger badger.Logger
}

// Option configures a Config.
type Option func(*Config)

// WithDir sets the data directory.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithInMemory keeps everything in memory.
func WithInMemory() Option {
	return func(c *Config) {
		c.InMemory = true
	}
}

// WithSyncWrites fsyncs every write.
func WithSyncWrites() Option {
	return func(c *Config) {
		c.SyncWrites = true
	}
}

// WithKeyPrefix sets the namespace prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// DefaultConfig returns an on-disk configuration rooted at ./data.
func DefaultConfig() Config {
	return Config{
		Dir:       "data",
		KeyPrefix: "supportflow/",
	}
}

// Open opens a database.
func Open(cfg Config, opts ...Option) (*badger.DB, Config, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	bopts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.WithSyncWrites(cfg.SyncWrites).WithLogger(cfg.Logger)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, cfg, errors.Join(ErrConnectionFailed, err)
	}
	return db, cfg, nil
}
