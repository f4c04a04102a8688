package domain

import (
	"encoding/json"
	"time"
)

// ReceivedReport is an ErrorRecord as accepted by the collector.
type ReceivedReport struct {
	ID          string          `json:"report_id"`
	ReceivedAt  time.Time       `json:"received_at"`
	Record      ErrorRecord     `json:"record"`
	Raw         json.RawMessage `json:"-"` // The original payload, never written to the sink
	PIIRedacted bool            `json:"pii_redacted,omitempty"`
}
