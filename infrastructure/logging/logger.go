// Package logging provides structured logging for the workflow runtime using bolt.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/felixgeelhaar/bolt/v3"
)

var current atomic.Pointer[bolt.Logger]

// Config configures the process-wide logger.
type Config struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string

	// Format is json or console.
	Format string

	// NoColor disables colored console output.
	NoColor bool

	// Output defaults to stderr so payloads written to stdout stay parseable.
	Output io.Writer
}

// DefaultConfig returns the console configuration used by the CLI.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: os.Stderr,
	}
}

// ProductionConfig returns a JSON configuration.
func ProductionConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	}
}

func parseLevel(s string) bolt.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return bolt.TRACE
	case "debug":
		return bolt.DEBUG
	case "warn", "warning":
		return bolt.WARN
	case "error":
		return bolt.ERROR
	default:
		return bolt.INFO
	}
}

// New builds a logger without installing it.
func New(config Config) *bolt.Logger {
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	var handler bolt.Handler
	if config.Format == "json" {
		handler = bolt.NewJSONHandler(output)
	} else {
		handler = bolt.NewConsoleHandler(output)
	}
	return bolt.New(handler).SetLevel(parseLevel(config.Level))
}

// Init installs a logger built from config as the process-wide logger.
// Unlike a sync.Once setup it may be called again, which is how a config
// reload applies a new level or format.
func Init(config Config) {
	current.Store(New(config))
}

// Use installs an existing logger, mainly for tests capturing output.
func Use(logger *bolt.Logger) {
	current.Store(logger)
}

// Get returns the process-wide logger, initializing the default on first use.
func Get() *bolt.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	current.CompareAndSwap(nil, New(DefaultConfig()))
	return current.Load()
}

// SetLevel changes the level of the process-wide logger.
func SetLevel(level string) {
	Get().SetLevel(parseLevel(level))
}

// LogEvent wraps a bolt.Event so Fields can be chained onto it.
type LogEvent struct {
	event *bolt.Event
}

// Add applies a field and returns the wrapper.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

// Msg sends the event with a message.
func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

// Send sends the event without a message.
func (l *LogEvent) Send() {
	l.event.Send()
}

// Debug starts a debug level event.
func Debug() *LogEvent {
	return &LogEvent{event: Get().Debug()}
}

// Info starts an info level event.
func Info() *LogEvent {
	return &LogEvent{event: Get().Info()}
}

// Warn starts a warn level event.
func Warn() *LogEvent {
	return &LogEvent{event: Get().Warn()}
}

// Error starts an error level event.
func Error() *LogEvent {
	return &LogEvent{event: Get().Error()}
}
