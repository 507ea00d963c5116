package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/supportflow/domain/config"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestEnvExpander(t *testing.T) {
	t.Parallel()

	env := map[string]string{"HOST": "db.internal", "EMPTY": ""}

	tests := []struct {
		name    string
		input   string
		strict  bool
		want    string
		wantErr bool
	}{
		{"bracket", "dsn: ${HOST}:5432", false, "dsn: db.internal:5432", false},
		{"simple", "host: $HOST", false, "host: db.internal", false},
		{"default used", "level: ${LEVEL:-info}", false, "level: info", false},
		{"default on empty", "x: ${EMPTY:-fallback}", false, "x: fallback", false},
		{"default ignored", "h: ${HOST:-localhost}", false, "h: db.internal", false},
		{"unset lenient", "p: ${PASSWORD}", false, "p: ", false},
		{"unset strict", "p: ${PASSWORD}", true, "", true},
		{"required missing", "p: ${PASSWORD:?password needed}", false, "", true},
		{"no variables", "plain text", true, "plain text", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := &envExpander{strict: tt.strict, lookup: mapLookup(env)}
			got, err := e.Expand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
					t.Errorf("Expand() error = %v, want ErrMissingEnvVar", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Expand() = %q, want %q", got, tt.want)
			}
		})
	}
}

const sampleYAML = `
agent:
  name: Langie
  version: 2.0.0
logging:
  level: debug
  format: json
engine:
  request_timeout: 30s
checkpoint:
  backend: sqlite
  dsn: file:test.db
cache:
  backend: none
`

func TestLoader_LoadString(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().LoadString(sampleYAML, FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.Agent.Version != "2.0.0" {
		t.Errorf("Agent.Version = %s, want 2.0.0", cfg.Agent.Version)
	}
	if cfg.Engine.RequestTimeout.Duration() != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Engine.RequestTimeout.Duration())
	}
	// Untouched sections keep their defaults.
	if cfg.Resilience.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Resilience.Retry.MaxAttempts)
	}
	if cfg.Checkpoint.Backend != domainconfig.BackendSQLite {
		t.Errorf("Checkpoint.Backend = %s, want sqlite", cfg.Checkpoint.Backend)
	}
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		format  Format
		opts    []LoaderOption
		want    error
	}{
		{"invalid yaml", "agent: [", FormatYAML, nil, domainconfig.ErrInvalidFormat},
		{"invalid json", "{", FormatJSON, nil, domainconfig.ErrInvalidFormat},
		{"unsupported", "x", Format("toml"), nil, domainconfig.ErrUnsupportedFormat},
		{"validation", "checkpoint:\n  backend: s3\n", FormatYAML, nil, domainconfig.ErrValidationFailed},
		{"strict env", "agent:\n  name: ${SUPPORTFLOW_TEST_UNSET_NAME}\n", FormatYAML, []LoaderOption{WithStrictEnv(true)}, domainconfig.ErrMissingEnvVar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewLoader(tt.opts...).LoadString(tt.content, tt.format)
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadString() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoader_ValidationDisabled(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader(WithValidation(false), WithEnvExpansion(false)).
		LoadString("checkpoint:\n  backend: s3\n", FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.Checkpoint.Backend != "s3" {
		t.Errorf("Checkpoint.Backend = %s, want s3", cfg.Checkpoint.Backend)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "supportflow.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := NewLoader().LoadFile(path); err != nil {
		t.Errorf("LoadFile() error = %v", err)
	}
	if _, err := NewLoader().LoadFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, domainconfig.ErrConfigNotFound) {
		t.Errorf("LoadFile(missing) error = %v, want ErrConfigNotFound", err)
	}
	if _, err := NewLoader().LoadFile(dir); !errors.Is(err, domainconfig.ErrInvalidFormat) {
		t.Errorf("LoadFile(dir) error = %v, want ErrInvalidFormat", err)
	}

	txt := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := NewLoader().LoadFile(txt); !errors.Is(err, domainconfig.ErrUnsupportedFormat) {
		t.Errorf("LoadFile(txt) error = %v, want ErrUnsupportedFormat", err)
	}
}

func writeConfig(t *testing.T, path, level string) {
	t.Helper()

	content := strings.Replace(sampleYAML, "level: debug", "level: "+level, 1)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestWatcher_Reload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "supportflow.yaml")
	writeConfig(t, path, "debug")

	var errs []error
	w, err := NewWatcher(path, nil, WithErrorHandler(func(err error) { errs = append(errs, err) }))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	var seen []string
	w.OnChange(func(c domainconfig.AppConfig) { seen = append(seen, c.Logging.Level) })

	writeConfig(t, path, "warn")
	w.Reload()
	if got := w.Current().Logging.Level; got != "warn" {
		t.Errorf("Current().Logging.Level = %s, want warn", got)
	}

	writeConfig(t, path, "shouting")
	w.Reload()
	if got := w.Current().Logging.Level; got != "warn" {
		t.Errorf("Current() after bad reload = %s, want warn", got)
	}
	if len(errs) != 1 {
		t.Errorf("error handler calls = %d, want 1", len(errs))
	}
	if len(seen) != 1 || seen[0] != "warn" {
		t.Errorf("callbacks saw %v, want [warn]", seen)
	}
}

func TestWatcher_Run(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "supportflow.yaml")
	writeConfig(t, path, "debug")

	w, err := NewWatcher(path, nil, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	changed := make(chan string, 4)
	w.OnChange(func(c domainconfig.AppConfig) { changed <- c.Logging.Level })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "error")

	select {
	case level := <-changed:
		if level != "error" {
			t.Errorf("reloaded level = %s, want error", level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
