package domain

import (
	"context"
	"time"
)

// ConsoleChannel renders a grouped, human-readable report of a record.
type ConsoleChannel interface {
	Write(record ErrorRecord) error
}

// RemoteChannel delivers a record to an HTTP endpoint. Any non-2xx answer is
// a failure.
type RemoteChannel interface {
	Send(ctx context.Context, endpoint string, record ErrorRecord) error
}

// EventChannel forwards records to a third-party error tracker.
type EventChannel interface {
	Capture(ctx context.Context, record ErrorRecord) error

	// Flush waits up to timeout for buffered events and reports whether
	// everything was sent.
	Flush(timeout time.Duration) bool
}
