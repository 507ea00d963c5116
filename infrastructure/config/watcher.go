package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/supportflow/domain/config"
)

// defaultDebounce coalesces the burst of events editors emit on save.
const defaultDebounce = 100 * time.Millisecond

// Watcher reloads a config file when it changes and hands the new value to
// registered callbacks. Invalid files are reported and the last good value
// is kept.
type Watcher struct {
	path     string
	loader   *Loader
	debounce time.Duration

	mu        sync.RWMutex
	current   config.AppConfig
	callbacks []func(config.AppConfig)
	onError   func(error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithErrorHandler receives reload failures.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// NewWatcher loads path once and returns a watcher holding that value.
func NewWatcher(path string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if loader == nil {
		loader = NewLoader()
	}
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		loader:   loader,
		debounce: defaultDebounce,
		current:  cfg,
		onError:  func(error) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Current returns the last successfully loaded configuration.
func (w *Watcher) Current() config.AppConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(config.AppConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Run watches until ctx is canceled. The parent directory is watched so
// atomic renames by editors are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			w.Reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.onError(err)
		}
	}
}

// Reload re-reads the file now.
func (w *Watcher) Reload() {
	cfg, err := w.loader.LoadFile(w.path)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(config.AppConfig){}, w.callbacks...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}
