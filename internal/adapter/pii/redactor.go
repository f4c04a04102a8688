package pii

import (
	"log/slog"
	"strings"

	"github.com/V4T54L/loanapp/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive applicant data (email, income, SSN...) carried in
// the extension map of error records before they leave the process.
type Redactor struct {
	fieldsToRedact map[string]struct{} // lowercased
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor for the given field names. Matching is
// case-insensitive.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		fieldSet[strings.ToLower(field)] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// RedactRecord replaces configured keys in record.Context.Extra, descending
// into nested maps and lists. The caller's maps are never modified; the
// record gets a fresh copy when anything was masked. It reports whether
// anything was redacted.
func (r *Redactor) RedactRecord(record *domain.ErrorRecord) bool {
	if r == nil || len(r.fieldsToRedact) == 0 || len(record.Context.Extra) == 0 {
		return false
	}

	out, n := r.redactMap(record.Context.Extra)
	if n == 0 {
		return false
	}
	record.Context.Extra = out
	r.logger.Debug("redacted PII from error record", "fields", n, "component", record.Context.Component)
	return true
}

// RedactReport redacts the embedded record and flags the report.
func (r *Redactor) RedactReport(report *domain.ReceivedReport) {
	if r.RedactRecord(&report.Record) {
		report.PIIRedacted = true
	}
}

func (r *Redactor) redactMap(in map[string]any) (map[string]any, int) {
	out := make(map[string]any, len(in))
	count := 0
	for k, v := range in {
		if _, ok := r.fieldsToRedact[strings.ToLower(k)]; ok {
			out[k] = RedactedPlaceholder
			count++
			continue
		}
		nv, n := r.redactValue(v)
		out[k] = nv
		count += n
	}
	return out, count
}

func (r *Redactor) redactValue(v any) (any, int) {
	switch val := v.(type) {
	case map[string]any:
		return r.redactMap(val)
	case []any:
		out := make([]any, len(val))
		count := 0
		for i, item := range val {
			nv, n := r.redactValue(item)
			out[i] = nv
			count += n
		}
		return out, count
	default:
		return v, 0
	}
}
