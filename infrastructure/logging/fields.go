package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// ThreadID adds the checkpoint thread (ticket) id.
func ThreadID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("thread_id", id)
	}
}

// Stage adds a stage name.
func Stage(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("stage", name)
	}
}

// Mode adds a stage execution mode.
func Mode(mode string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("mode", mode)
	}
}

// Ability adds an ability name.
func Ability(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("ability", name)
	}
}

// Backend adds a backend group.
func Backend(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("backend", name)
	}
}

// Branch adds the DECIDE branch label.
func Branch(label string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("branch", label)
	}
}

// Status adds a status field.
func Status(status string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", status)
	}
}

// Count adds an integer count under key.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Duration adds a duration in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Cached marks a result served from cache.
func Cached(cached bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("cached", cached)
	}
}

// ErrorField adds an error; nil errors are skipped.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component name.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with a custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
