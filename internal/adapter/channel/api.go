package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
)

// LoggerVersion is sent in the X-Error-Logger header.
const LoggerVersion = "1.0"

const (
	LoggerHeader = "X-Error-Logger"
	APIKeyHeader = "X-API-Key"
)

// StatusError reports a non-2xx answer from the logging endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API logging failed: %d", e.StatusCode)
}

// HTTPReporter posts records as JSON to a logging endpoint.
type HTTPReporter struct {
	client *http.Client
	apiKey string
}

// NewHTTPReporter creates a reporter. A zero timeout keeps the client
// without a deadline; apiKey is sent as X-API-Key when non-empty.
func NewHTTPReporter(timeout time.Duration, apiKey string) *HTTPReporter {
	return &HTTPReporter{
		client: &http.Client{Timeout: timeout},
		apiKey: apiKey,
	}
}

// Send posts one record to endpoint.
func (r *HTTPReporter) Send(ctx context.Context, endpoint string, record domain.ErrorRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal error record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build logging request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(LoggerHeader, LoggerVersion)
	if r.apiKey != "" {
		req.Header.Set(APIKeyHeader, r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send error record: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
