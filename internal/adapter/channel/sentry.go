package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/getsentry/sentry-go"
)

var errEventDropped = errors.New("sentry dropped the event")

// SentryReporter forwards records to Sentry through its own hub, so the
// global hub stays untouched.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter creates a client for dsn.
func NewSentryReporter(dsn, environment string) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init failed: %w", err)
	}
	return NewSentryReporterWithHub(sentry.NewHub(client, sentry.NewScope())), nil
}

// NewSentryReporterWithHub wraps an existing hub.
func NewSentryReporterWithHub(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

// Capture sends one record as an exception event.
func (s *SentryReporter) Capture(ctx context.Context, record domain.ErrorRecord) error {
	if id := s.hub.CaptureEvent(buildEvent(record)); id == nil {
		return errEventDropped
	}
	return nil
}

// Flush waits for queued events.
func (s *SentryReporter) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

func buildEvent(record domain.ErrorRecord) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = sentryLevel(record.Level)
	event.Message = record.Message
	event.Timestamp = record.Timestamp
	event.Exception = []sentry.Exception{{
		Type:  record.Name,
		Value: record.Message,
	}}
	event.User = sentry.User{ID: record.Context.UserID}

	event.Tags["component"] = record.Context.Component
	event.Tags["action"] = record.Context.Action
	event.Tags["session_id"] = record.Context.SessionID
	if record.FallbackReason != "" {
		event.Tags["fallback_reason"] = record.FallbackReason
	}

	details := sentry.Context{
		"userAgent": record.Context.UserAgent,
		"url":       record.Context.URL,
	}
	if record.Stack != nil {
		details["stack"] = *record.Stack
	}
	for k, v := range record.Context.Extra {
		details[k] = v
	}
	event.Contexts["error_record"] = details
	return event
}

func sentryLevel(level domain.Level) sentry.Level {
	switch level {
	case domain.LevelWarn:
		return sentry.LevelWarning
	case domain.LevelInfo:
		return sentry.LevelInfo
	case domain.LevelDebug:
		return sentry.LevelDebug
	default:
		return sentry.LevelError
	}
}
