package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/loanapp/internal/adapter/pii"
	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultRetryCount   = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// IngestReportUseCase handles error reports received by the collector.
type IngestReportUseCase struct {
	sink         domain.ReportSink
	redactor     *pii.Redactor
	logger       *slog.Logger
	retryCount   int
	retryBackoff time.Duration
}

// NewIngestReportUseCase creates a new IngestReportUseCase. Non-positive
// retry settings fall back to 3 attempts, 500ms apart.
func NewIngestReportUseCase(sink domain.ReportSink, redactor *pii.Redactor, logger *slog.Logger, retryCount int, retryBackoff time.Duration) *IngestReportUseCase {
	if retryCount <= 0 {
		retryCount = defaultRetryCount
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &IngestReportUseCase{
		sink:         sink,
		redactor:     redactor,
		logger:       logger,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// Ingest enriches, redacts and writes a batch of reports.
func (uc *IngestReportUseCase) Ingest(ctx context.Context, reports []domain.ReceivedReport) error {
	if len(reports) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("report-ingest").Start(ctx, "Ingest")
	defer span.End()
	span.SetAttributes(attribute.Int("reports.count", len(reports)))

	now := time.Now().UTC()
	for i := range reports {
		r := &reports[i]
		r.ReceivedAt = now
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		uc.redactor.RedactReport(r)
		fillRecordDefaults(&r.Record, now)
	}

	if err := uc.writeWithRetry(ctx, reports); err != nil {
		uc.logger.Error("failed to write error reports after retries", "error", err, "count", len(reports))
		span.RecordError(err)
		span.SetStatus(codes.Error, "sink write failed")
		return err
	}
	return nil
}

func (uc *IngestReportUseCase) writeWithRetry(ctx context.Context, reports []domain.ReceivedReport) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.sink.WriteReports(ctx, reports)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == uc.retryCount-1 {
			break
		}
		uc.logger.Warn("failed to write reports to sink, retrying...", "attempt", i+1, "error", err)
		select {
		case <-time.After(uc.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// fillRecordDefaults applies the same placeholders as the logger to reports
// from clients that sent partial records.
func fillRecordDefaults(r *domain.ErrorRecord, now time.Time) {
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if r.Level == "" {
		r.Level = domain.LevelError
	}
	if r.Message == "" {
		r.Message = domain.UnknownMessage
	}
	if r.Name == "" {
		r.Name = domain.DefaultErrorName
	}
	c := &r.Context
	for _, f := range []struct {
		v   *string
		def string
	}{
		{&c.UserAgent, domain.ServerValue},
		{&c.URL, domain.ServerValue},
		{&c.UserID, domain.AnonymousUser},
		{&c.Component, domain.UnknownValue},
		{&c.Action, domain.UnknownValue},
	} {
		if *f.v == "" {
			*f.v = f.def
		}
	}
}
