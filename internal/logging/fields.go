package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent diagnostics.
const (
	FieldSourceApp = "source_app"
	FieldEventType = "hook_event_type"
	FieldSessionID = "session_id"
	FieldPath      = "path"
	FieldURL       = "url"
	FieldSink      = "sink"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

// SourceApp returns a slog attribute for the source application.
func SourceApp(name string) slog.Attr {
	return slog.String(FieldSourceApp, name)
}

// EventType returns a slog attribute for the hook event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// SessionID returns a slog attribute for the agent session ID.
func SessionID(id string) slog.Attr {
	return slog.String(FieldSessionID, id)
}

// Path returns a slog attribute for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(FieldPath, p)
}

// URL returns a slog attribute for a destination URL.
func URL(u string) slog.Attr {
	return slog.String(FieldURL, u)
}

// Sink returns a slog attribute for the delivery sink name.
func Sink(name string) slog.Attr {
	return slog.String(FieldSink, name)
}

// Status returns a slog attribute for an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
