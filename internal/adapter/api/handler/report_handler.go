package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/V4T54L/loanapp/internal/adapter/metrics"
	"github.com/V4T54L/loanapp/internal/domain"
)

// ReportIngester accepts decoded error reports.
type ReportIngester interface {
	Ingest(ctx context.Context, reports []domain.ReceivedReport) error
}

var (
	errBadPayload          = errors.New("bad payload")
	errUnsupportedEncoding = errors.New("unsupported content encoding")
	errDecodedTooLarge     = errors.New("decoded body too large")
)

// ReportHandler accepts error records posted by remote channels.
type ReportHandler struct {
	ingester ReportIngester
	logger   *slog.Logger
	maxSize  int64
	metrics  *metrics.CollectorMetrics
}

// NewReportHandler creates a ReportHandler. metrics may be nil.
func NewReportHandler(ingester ReportIngester, logger *slog.Logger, maxSize int64, m *metrics.CollectorMetrics) *ReportHandler {
	return &ReportHandler{
		ingester: ingester,
		logger:   logger.With("component", "report_handler"),
		maxSize:  maxSize,
		metrics:  m,
	}
}

// ServeHTTP accepts one record as application/json or many as
// application/x-ndjson, and answers 202 once they are stored.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)
	body, err := h.readBody(r)
	if errors.Is(err, errUnsupportedEncoding) {
		h.count("error_media_type")
		http.Error(w, "Unsupported Content-Encoding", http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || errors.Is(err, errDecodedTooLarge) {
			h.count("error_size")
			http.Error(w, "Payload Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		h.count("error_parse")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if h.metrics != nil {
		h.metrics.BytesTotal.Add(float64(len(body)))
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var reports []domain.ReceivedReport
	switch mediaType {
	case "application/json":
		reports, err = decodeSingle(body)
	case "application/x-ndjson":
		reports, err = decodeNDJSON(body)
	default:
		h.count("error_media_type")
		http.Error(w, fmt.Sprintf("Unsupported Media Type: %s", mediaType), http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		h.logger.Warn("failed to decode error report", "error", err, "content_type", mediaType)
		h.count("error_parse")
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.ingester.Ingest(r.Context(), reports); err != nil {
		h.logger.Error("failed to ingest error reports", "error", err, "count", len(reports))
		h.count("error_sink")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	for range reports {
		h.count("accepted")
	}
	w.WriteHeader(http.StatusAccepted)
}

// readBody reads the request body, decompressing gzip and zstd bodies. The
// decompressed size is capped at maxSize as well.
func (h *ReportHandler) readBody(r *http.Request) ([]byte, error) {
	var src io.Reader
	switch enc := r.Header.Get("Content-Encoding"); enc {
	case "", "identity":
		return io.ReadAll(r.Body)
	case "gzip":
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		defer zr.Close()
		src = zr
	case "zstd":
		zr, err := zstd.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		defer zr.Close()
		src = zr
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedEncoding, enc)
	}

	body, err := io.ReadAll(io.LimitReader(src, h.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.maxSize {
		return nil, errDecodedTooLarge
	}
	return body, nil
}

func (h *ReportHandler) count(status string) {
	if h.metrics != nil {
		h.metrics.ReportsTotal.WithLabelValues(status).Inc()
	}
}

func decodeSingle(body []byte) ([]domain.ReceivedReport, error) {
	var record domain.ErrorRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("%w: failed to decode JSON", errBadPayload)
	}
	return []domain.ReceivedReport{{Record: record, Raw: body}}, nil
}

func decodeNDJSON(body []byte) ([]domain.ReceivedReport, error) {
	var reports []domain.ReceivedReport
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var record domain.ErrorRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("%w: failed to decode NDJSON line %d", errBadPayload, line)
		}
		reports = append(reports, domain.ReceivedReport{Record: record, Raw: append([]byte(nil), raw...)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: empty NDJSON body", errBadPayload)
	}
	return reports, nil
}
