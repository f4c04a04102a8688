package domain

import "context"

// LogStore is the bounded local log: an ordered sequence of records under one
// fixed key. It abstracts away the specific backends (file, Redis, memory).
type LogStore interface {
	// Append adds a record and evicts the oldest entries so that at most
	// capacity records remain.
	Append(ctx context.Context, record ErrorRecord, capacity int) error

	// All returns every stored record, oldest first.
	All(ctx context.Context) ([]ErrorRecord, error)

	// Clear removes every stored record.
	Clear(ctx context.Context) error
}

// SessionStore is session-scoped key/value storage.
type SessionStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	Set(ctx context.Context, key, value string) error

	Delete(ctx context.Context, key string) error
}

// ReportSink is the final structured sink of the reference collector.
type ReportSink interface {
	// WriteReports writes a batch of received reports. Implementations must be
	// idempotent on ReceivedReport.ID.
	WriteReports(ctx context.Context, reports []ReceivedReport) error
}

// APIKeyRepository defines the interface for validating collector API keys.
type APIKeyRepository interface {
	// IsValid checks if the provided API key is valid and active.
	// Implementations should handle caching to reduce database load.
	IsValid(ctx context.Context, key string) (bool, error)
}
