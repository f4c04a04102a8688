package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS error_reports (
	report_id       TEXT PRIMARY KEY,
	received_at     TIMESTAMPTZ NOT NULL,
	occurred_at     TIMESTAMPTZ NOT NULL,
	level           TEXT NOT NULL,
	name            TEXT NOT NULL,
	message         TEXT NOT NULL,
	stack           TEXT,
	user_id         TEXT NOT NULL,
	session_id      TEXT NOT NULL,
	component       TEXT NOT NULL,
	action          TEXT NOT NULL,
	user_agent      TEXT NOT NULL,
	url             TEXT NOT NULL,
	extra           JSONB,
	api_error       TEXT,
	fallback_reason TEXT,
	pii_redacted    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS error_reports_session_idx ON error_reports (session_id, occurred_at);
CREATE TABLE IF NOT EXISTS api_keys (
	key        TEXT PRIMARY KEY,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	expires_at TIMESTAMPTZ
);`

var reportColumns = []string{
	"report_id", "received_at", "occurred_at", "level", "name", "message", "stack",
	"user_id", "session_id", "component", "action", "user_agent", "url",
	"extra", "api_error", "fallback_reason", "pii_redacted",
}

// ReportSink implements domain.ReportSink for PostgreSQL.
type ReportSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewReportSink creates a new PostgreSQL report sink.
func NewReportSink(db *sql.DB, logger *slog.Logger) *ReportSink {
	return &ReportSink{db: db, logger: logger.With("component", "postgres_report_sink")}
}

// EnsureSchema creates the collector tables if they do not exist.
func (r *ReportSink) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collector schema: %w", err)
	}
	return nil
}

// WriteReports writes a batch of reports using the COPY protocol into a
// temporary table, then upserts on report_id so retries stay idempotent.
func (r *ReportSink) WriteReports(ctx context.Context, reports []domain.ReceivedReport) error {
	if len(reports) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	tempTableName := "error_reports_temp_import"
	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE error_reports INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return err
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(tempTableName, reportColumns...))
	if err != nil {
		return err
	}

	for _, rep := range reports {
		row, err := reportRow(rep)
		if err != nil {
			_ = stmt.Close()
			return err
		}
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			// Close the statement to avoid connection issues
			_ = stmt.Close()
			return err
		}
	}

	if err := stmt.Close(); err != nil {
		return err
	}

	upsertQuery := `
		INSERT INTO error_reports SELECT * FROM ` + tempTableName + `
		ON CONFLICT (report_id) DO UPDATE SET
			received_at = EXCLUDED.received_at,
			message = EXCLUDED.message,
			stack = EXCLUDED.stack,
			extra = EXCLUDED.extra,
			api_error = EXCLUDED.api_error,
			fallback_reason = EXCLUDED.fallback_reason,
			pii_redacted = EXCLUDED.pii_redacted;
	`
	if _, err = txn.ExecContext(ctx, upsertQuery); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	r.logger.Debug("wrote error reports", "count", len(reports))
	return nil
}

// reportRow flattens a report in reportColumns order.
func reportRow(rep domain.ReceivedReport) ([]interface{}, error) {
	rec := rep.Record
	var extra interface{}
	if len(rec.Context.Extra) > 0 {
		b, err := json.Marshal(rec.Context.Extra)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extra for report %s: %w", rep.ID, err)
		}
		extra = string(b)
	}
	return []interface{}{
		rep.ID, rep.ReceivedAt, rec.Timestamp, string(rec.Level), rec.Name, rec.Message, nullString(rec.StackString()),
		rec.Context.UserID, rec.Context.SessionID, rec.Context.Component, rec.Context.Action, rec.Context.UserAgent, rec.Context.URL,
		extra, nullString(rec.APIError), nullString(rec.FallbackReason), rep.PIIRedacted,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
