package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/loanapp/internal/adapter/pii"
	"github.com/V4T54L/loanapp/internal/domain/mocks"
	"github.com/V4T54L/loanapp/internal/usecase"
)

type demoFixture struct {
	handler *DemoHandler
	console *mocks.MockConsole
	store   *mocks.MockLogStore
	def     *usecase.ErrorLogger
}

func newDemoFixture(t *testing.T) *demoFixture {
	t.Helper()
	f := &demoFixture{console: &mocks.MockConsole{}, store: &mocks.MockLogStore{}}

	consoleLogger, err := usecase.NewErrorLogger(usecase.LoggerConfig{EnableConsole: true}, nil, nil, discardLogger(),
		usecase.WithConsole(f.console))
	if err != nil {
		t.Fatal(err)
	}
	f.def, err = usecase.NewErrorLogger(usecase.DefaultLoggerConfig(), f.store, nil, discardLogger(),
		usecase.WithRedactor(pii.NewRedactor([]string{"email", "income"}, discardLogger())))
	if err != nil {
		t.Fatal(err)
	}

	f.handler = NewDemoHandler(DemoLoggers{Console: consoleLogger, Default: f.def}, discardLogger())
	f.handler.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestDemoHandler_TriggerError(t *testing.T) {
	tests := []struct {
		name       string
		kind       string
		wantStatus int
		wantMsg    string
	}{
		{"console logger", "console", http.StatusAccepted, "Console logging test error"},
		{"runtime error", "runtime", http.StatusAccepted, "nil pointer dereference"},
		{"unconfigured logger", "api", http.StatusServiceUnavailable, ""},
		{"unknown kind", "carrier-pigeon", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDemoFixture(t)
			req := httptest.NewRequest(http.MethodPost, "/demo/errors/"+tt.kind, nil)
			req.SetPathValue("kind", tt.kind)
			rr := httptest.NewRecorder()
			f.handler.TriggerError(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantMsg == "" {
				return
			}
			var res demoResult
			if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
				t.Fatal(err)
			}
			if res.Channel != tt.kind || !strings.Contains(res.Record.Message, tt.wantMsg) {
				t.Errorf("unexpected result: %+v", res)
			}
			if res.Record.Context.Component != demoComponent {
				t.Errorf("Component = %q", res.Record.Context.Component)
			}
		})
	}
}

func TestDemoHandler_TriggerError_ConsoleDetails(t *testing.T) {
	f := newDemoFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/demo/errors/console", nil)
	req.SetPathValue("kind", "console")
	f.handler.TriggerError(httptest.NewRecorder(), req)

	written := f.console.Written()
	if len(written) != 1 {
		t.Fatalf("expected one console record, got %d", len(written))
	}
	if written[0].Context.Action != "console_test" || written[0].Context.Extra["severity"] != "high" {
		t.Errorf("unexpected context: %+v", written[0].Context)
	}
}

func TestDemoHandler_RuntimeErrorUser(t *testing.T) {
	f := newDemoFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/demo/errors/runtime", nil)
	req.SetPathValue("kind", "runtime")
	f.handler.TriggerError(httptest.NewRecorder(), req)

	stored := f.store.Snapshot()
	if len(stored) != 1 || stored[0].Context.UserID != "demo-user" {
		t.Fatalf("expected the runtime error stored for demo-user, got %+v", stored)
	}
	if stored[0].Context.Action != "runtime_error_simulation" {
		t.Errorf("Action = %q", stored[0].Context.Action)
	}
}

func TestDemoHandler_SubmitApplication(t *testing.T) {
	valid := url.Values{"dob": {"1990-05-01"}, "pan": {"ABCDE1234F"}, "email": {"a@b.c"}, "income": {"50000"}}

	tests := []struct {
		name       string
		step       string
		form       url.Values
		wantStatus int
		check      func(t *testing.T, res applyResponse)
	}{
		{"first step advances", "1", valid, http.StatusOK, func(t *testing.T, res applyResponse) {
			if res.NextStep != 2 {
				t.Errorf("NextStep = %d", res.NextStep)
			}
		}},
		{"last step completes", "3", valid, http.StatusOK, func(t *testing.T, res applyResponse) {
			if !res.Completed || res.Message != "Application Completed ✅" {
				t.Errorf("unexpected response: %+v", res)
			}
		}},
		{"underage applicant", "1", url.Values{"dob": {"2010-01-01"}, "pan": {"ABCDE1234F"}}, http.StatusUnprocessableEntity, func(t *testing.T, res applyResponse) {
			if res.Errors["dob"] != "You must be at least 18 years old" {
				t.Errorf("Errors = %v", res.Errors)
			}
		}},
		{"bad PAN", "1", url.Values{"dob": {"1990-05-01"}, "pan": {"abcde1234f"}}, http.StatusUnprocessableEntity, func(t *testing.T, res applyResponse) {
			if res.Errors["pan"] != "Invalid PAN format (e.g., ABCDE1234F)" {
				t.Errorf("Errors = %v", res.Errors)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDemoFixture(t)
			req := httptest.NewRequest(http.MethodPost, "/apply?step="+tt.step, strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := httptest.NewRecorder()
			f.handler.SubmitApplication(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			var res applyResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
				t.Fatal(err)
			}
			tt.check(t, res)
		})
	}
}

func TestDemoHandler_SubmitApplication_LogsRedactedFormData(t *testing.T) {
	f := newDemoFixture(t)
	form := url.Values{"email": {"jane@example.com"}, "income": {"90000"}, "loanType": {"Home Loan"}}
	req := httptest.NewRequest(http.MethodPost, "/apply?step=nine", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.handler.SubmitApplication(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.def.Close(ctx); err != nil {
		t.Fatal(err)
	}

	stored := f.store.Snapshot()
	if len(stored) != 1 {
		t.Fatalf("expected one stored record, got %d", len(stored))
	}
	c := stored[0].Context
	if c.Component != "LoanApplicationForm" || c.Action != "form_submission" {
		t.Errorf("unexpected context: %+v", c)
	}
	formData, ok := c.Extra["formData"].(map[string]any)
	if !ok {
		t.Fatalf("formData missing: %+v", c.Extra)
	}
	if formData["email"] != pii.RedactedPlaceholder || formData["income"] != pii.RedactedPlaceholder {
		t.Errorf("PII not redacted: %v", formData)
	}
	if formData["loanType"] != "Home Loan" {
		t.Errorf("non-PII field changed: %v", formData)
	}
}

func TestDemoHandler_ApplyForm(t *testing.T) {
	f := newDemoFixture(t)

	rr := httptest.NewRecorder()
	if err := f.handler.ApplyForm(rr, httptest.NewRequest(http.MethodGet, "/apply?step=2", nil)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rr.Body.String(), "Step 2 of 3") {
		t.Errorf("unexpected page: %s", rr.Body.String())
	}

	if err := f.handler.ApplyForm(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/apply?step=7", nil)); err == nil {
		t.Error("out-of-range step should fail the render")
	}
}

func TestValidateApplication(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		dob  string
		pan  string
		want map[string]string
	}{
		{"valid", "2000-01-01", "ABCDE1234F", map[string]string{}},
		{"turns 18 today", "2008-10-19", "ABCDE1234F", map[string]string{}},
		{"turns 18 tomorrow", "2008-10-20", "ABCDE1234F", map[string]string{"dob": "You must be at least 18 years old"}},
		{"missing both", "", "", map[string]string{"dob": "Date of Birth is required", "pan": "PAN Number is required"}},
		{"unparseable dob", "19/10/1990", "ABCDE1234F", map[string]string{"dob": "Invalid Date of Birth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validateApplication(tt.dob, tt.pan, now)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
