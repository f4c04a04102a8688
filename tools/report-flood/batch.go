package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/klauspost/compress/zstd"

	"github.com/V4T54L/loanapp/internal/adapter/channel"
	"github.com/V4T54L/loanapp/internal/domain"
)

// batchSender posts records as one zstd-compressed NDJSON body.
type batchSender struct {
	client *http.Client
	url    string
	apiKey string
	enc    *zstd.Encoder
}

func newBatchSender(client *http.Client, url, apiKey string) (*batchSender, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &batchSender{client: client, url: url, apiKey: apiKey, enc: enc}, nil
}

func (s *batchSender) Send(ctx context.Context, records []domain.ErrorRecord) error {
	var raw bytes.Buffer
	enc := json.NewEncoder(&raw)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	// EncodeAll is safe for concurrent use on a shared encoder.
	body := s.enc.EncodeAll(raw.Bytes(), nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Content-Encoding", "zstd")
	if s.apiKey != "" {
		req.Header.Set(channel.APIKeyHeader, s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &channel.StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
