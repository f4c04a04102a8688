package domain

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity attached to an ErrorRecord. It comes from the logger
// configuration and is never inferred from the failure itself.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// ParseLevel converts a configuration string into a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelError:
		return LevelError, nil
	case LevelWarn:
		return LevelWarn, nil
	case LevelInfo:
		return LevelInfo, nil
	case LevelDebug:
		return LevelDebug, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// Placeholders substituted when a failure value lacks the corresponding property.
const (
	UnknownMessage   = "Unknown error"
	DefaultErrorName = "Error"
	AnonymousUser    = "anonymous"
	UnknownValue     = "Unknown"
	ServerValue      = "Server"
	ServerSessionID  = "server-session"
)

// FallbackReasonAPIFailed marks records that reached the local store because
// remote delivery failed.
const FallbackReasonAPIFailed = "API_FAILED"

// ErrorRecord is the normalized, serializable representation of one captured failure.
type ErrorRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	Stack     *string       `json:"stack"`
	Name      string        `json:"name"`
	Context   RecordContext `json:"context"`

	// Set only on copies written by the remote-delivery fallback.
	APIError       string `json:"apiError,omitempty"`
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// RecordContext carries the recognized context keys of a record plus one open
// extension map for caller-supplied auxiliary data.
type RecordContext struct {
	UserAgent string         `json:"userAgent"`
	URL       string         `json:"url"`
	UserID    string         `json:"userId"`
	SessionID string         `json:"sessionId"`
	Component string         `json:"component"`
	Action    string         `json:"action"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Fields is the caller-supplied part of a record's context. Empty values fall
// back to the seeded defaults.
type Fields struct {
	UserID    string
	SessionID string
	Component string
	Action    string
	Extra     map[string]any
}

// WithFallback returns a copy of the record annotated as a remote-delivery fallback.
func (r ErrorRecord) WithFallback(apiErr error) ErrorRecord {
	out := r
	out.Context.Extra = CopyExtra(r.Context.Extra)
	if apiErr != nil {
		out.APIError = apiErr.Error()
	}
	out.FallbackReason = FallbackReasonAPIFailed
	return out
}

// StackString returns the stack trace or an empty string.
func (r ErrorRecord) StackString() string {
	if r.Stack == nil {
		return ""
	}
	return *r.Stack
}

// CopyExtra returns a shallow copy of an extension map, nil for empty input.
func CopyExtra(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// KeepNewest drops the oldest records so that at most capacity remain.
// A capacity of zero or less keeps everything.
func KeepNewest(records []ErrorRecord, capacity int) []ErrorRecord {
	if capacity <= 0 || len(records) <= capacity {
		return records
	}
	return append([]ErrorRecord(nil), records[len(records)-capacity:]...)
}
