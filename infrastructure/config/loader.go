// Package config loads the application configuration from YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/supportflow/domain/config"
)

// Format represents a configuration file format.
type Format string

const (
	// FormatYAML is the YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is the JSON format.
	FormatJSON Format = "json"
)

// Loader loads configuration. Values absent from the document keep their
// defaults.
type Loader struct {
	ExpandEnv bool
	StrictEnv bool
	Validate  bool
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithEnvExpansion enables or disables environment variable expansion.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.ExpandEnv = enabled
	}
}

// WithStrictEnv enables strict environment variable checking.
func WithStrictEnv(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.StrictEnv = enabled
	}
}

// WithValidation enables or disables validation.
func WithValidation(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.Validate = enabled
	}
}

// NewLoader creates a loader with expansion and validation enabled.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{ExpandEnv: true, Validate: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FormatFor returns the format implied by path's extension.
func FormatFor(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, ext)
	}
}

// LoadFile loads configuration from path.
func (l *Loader) LoadFile(path string) (config.AppConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.AppConfig{}, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return config.AppConfig{}, fmt.Errorf("failed to access config file: %w", err)
	}
	if info.IsDir() {
		return config.AppConfig{}, fmt.Errorf("%w: %s is a directory", config.ErrInvalidFormat, path)
	}

	format, err := FormatFor(path)
	if err != nil {
		return config.AppConfig{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return l.Load(f, format)
}

// Load reads configuration from r.
func (l *Loader) Load(r io.Reader, format Format) (config.AppConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("failed to read config: %w", err)
	}

	if l.ExpandEnv {
		e := &envExpander{strict: l.StrictEnv}
		expanded, err := e.Expand(string(data))
		if err != nil {
			return config.AppConfig{}, err
		}
		data = []byte(expanded)
	}

	cfg := config.Default()
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return config.AppConfig{}, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return config.AppConfig{}, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
		}
	default:
		return config.AppConfig{}, fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, format)
	}

	if l.Validate {
		if errs := cfg.Validate(); errs.HasErrors() {
			return config.AppConfig{}, fmt.Errorf("%w: %w", config.ErrValidationFailed, errs)
		}
	}
	return cfg, nil
}

// LoadString loads configuration from a string.
func (l *Loader) LoadString(content string, format Format) (config.AppConfig, error) {
	return l.Load(strings.NewReader(content), format)
}
