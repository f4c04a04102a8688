package pii

import (
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/loanapp/internal/domain"
)

func TestRedactor(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	redactor := NewRedactor([]string{"email", "SSN"}, logger)

	tests := []struct {
		name           string
		extra          map[string]any
		check          func(t *testing.T, extra map[string]any)
		expectRedacted bool
	}{
		{
			name:  "Redact single field",
			extra: map[string]any{"email": "test@example.com", "step": 2},
			check: func(t *testing.T, extra map[string]any) {
				if extra["email"] != RedactedPlaceholder || extra["step"] != 2 {
					t.Errorf("unexpected extra: %v", extra)
				}
			},
			expectRedacted: true,
		},
		{
			name:  "Case-insensitive match",
			extra: map[string]any{"Email": "a@b.c", "ssn": "000-00-0000"},
			check: func(t *testing.T, extra map[string]any) {
				if extra["Email"] != RedactedPlaceholder || extra["ssn"] != RedactedPlaceholder {
					t.Errorf("unexpected extra: %v", extra)
				}
			},
			expectRedacted: true,
		},
		{
			name: "Nested form data",
			extra: map[string]any{
				"formData": map[string]any{"email": "x@y.z", "loanAmount": 5000},
				"history":  []any{map[string]any{"ssn": "1"}},
			},
			check: func(t *testing.T, extra map[string]any) {
				form := extra["formData"].(map[string]any)
				if form["email"] != RedactedPlaceholder || form["loanAmount"] != 5000 {
					t.Errorf("nested map not redacted: %v", form)
				}
				item := extra["history"].([]any)[0].(map[string]any)
				if item["ssn"] != RedactedPlaceholder {
					t.Errorf("list item not redacted: %v", item)
				}
			},
			expectRedacted: true,
		},
		{
			name:  "No fields to redact",
			extra: map[string]any{"action": "submit"},
			check: func(t *testing.T, extra map[string]any) {
				if extra["action"] != "submit" {
					t.Errorf("unexpected extra: %v", extra)
				}
			},
			expectRedacted: false,
		},
		{
			name:           "Empty extra",
			extra:          nil,
			check:          func(t *testing.T, extra map[string]any) {},
			expectRedacted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &domain.ReceivedReport{Record: domain.ErrorRecord{
				Context: domain.RecordContext{Extra: tt.extra},
			}}

			redactor.RedactReport(report)

			if report.PIIRedacted != tt.expectRedacted {
				t.Errorf("PIIRedacted got = %v, want %v", report.PIIRedacted, tt.expectRedacted)
			}
			tt.check(t, report.Record.Context.Extra)
		})
	}
}

func TestRedactor_DoesNotMutateInput(t *testing.T) {
	redactor := NewRedactor([]string{"income"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	form := map[string]any{"income": 90000}
	record := domain.ErrorRecord{Context: domain.RecordContext{Extra: map[string]any{"form": form}}}

	if !redactor.RedactRecord(&record) {
		t.Fatal("expected redaction")
	}
	if form["income"] != 90000 {
		t.Errorf("caller map was modified: %v", form)
	}
}

func TestRedactor_NilIsNoop(t *testing.T) {
	var redactor *Redactor
	record := domain.ErrorRecord{Context: domain.RecordContext{Extra: map[string]any{"email": "a"}}}
	if redactor.RedactRecord(&record) {
		t.Error("nil redactor should not redact")
	}
}
