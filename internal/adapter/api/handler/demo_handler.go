package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/V4T54L/loanapp/internal/boundary"
	"github.com/V4T54L/loanapp/internal/domain"
)

const demoComponent = "ErrorDemo"

// DemoLoggers are the differently configured loggers the demo triggers.
type DemoLoggers struct {
	Console boundary.Reporter // console only
	Local   boundary.Reporter // local store only
	API     boundary.Reporter // console, local store and API
	Default boundary.Reporter // the process-wide logger
}

// DemoHandler exercises every reporting channel and both boundary mounts.
type DemoHandler struct {
	loggers DemoLoggers
	logger  *slog.Logger
	now     func() time.Time
}

// NewDemoHandler creates a new DemoHandler.
func NewDemoHandler(loggers DemoLoggers, logger *slog.Logger) *DemoHandler {
	return &DemoHandler{loggers: loggers, logger: logger.With("component", "demo_handler"), now: time.Now}
}

type demoResult struct {
	Channel string             `json:"channel"`
	Record  domain.ErrorRecord `json:"record"`
}

// TriggerError logs a sample failure through the logger named by {kind}:
// console, localStorage, api or runtime.
// POST /demo/errors/{kind}
func (h *DemoHandler) TriggerError(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")

	var (
		reporter boundary.Reporter
		failure  error
		fields   domain.Fields
	)
	switch kind {
	case "console":
		reporter = h.loggers.Console
		failure = errors.New("Console logging test error")
		fields = demoFields("console_test", "high")
	case "localStorage":
		reporter = h.loggers.Local
		failure = errors.New("LocalStorage logging test error")
		fields = demoFields("localStorage_test", "medium")
	case "api":
		reporter = h.loggers.API
		failure = errors.New("API logging test error")
		fields = demoFields("api_test", "low")
	case "runtime":
		reporter = h.loggers.Default
		failure = nilDereference()
		fields = domain.Fields{Component: demoComponent, Action: "runtime_error_simulation", UserID: "demo-user"}
	default:
		http.Error(w, "unknown demo error kind", http.StatusNotFound)
		return
	}
	if reporter == nil {
		http.Error(w, "logger not configured", http.StatusServiceUnavailable)
		return
	}

	record := reporter.Log(r.Context(), failure, fields).Wait()
	writeJSON(w, http.StatusAccepted, demoResult{Channel: kind, Record: record})
}

func demoFields(action, severity string) domain.Fields {
	return domain.Fields{
		Component: demoComponent,
		Action:    action,
		Extra:     map[string]any{"severity": severity},
	}
}

// nilDereference provokes a real runtime error and returns it.
func nilDereference() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	var data *struct{ Loan *struct{ Amount int } }
	_ = data.Loan.Amount
	return nil
}

// Widget renders a component that fails when ?crash=true. Mount it under a
// console-level boundary.
// GET /demo/widget
func (h *DemoHandler) Widget(w http.ResponseWriter, r *http.Request) error {
	if crash, _ := strconv.ParseBool(r.URL.Query().Get("crash")); crash {
		panic(errors.New("Intentional error for testing Error Boundary"))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := fmt.Fprint(w, `<div class="widget">Component working fine!</div>`)
	return err
}

// WidgetFallback is the demo's replacement for the inline notice.
func WidgetFallback(err error) *boundary.RecoveryView {
	return &boundary.RecoveryView{
		Kind:    boundary.InlineNotice,
		Icon:    "⚠️",
		Title:   "Error Boundary Caught:",
		Message: err.Error(),
		Actions: []boundary.Action{{Kind: boundary.ActionReset, Label: "Reset"}},
	}
}

var applyPage = template.Must(template.New("apply").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>LoanApp - Apply</title></head>
<body>
<h1>💰 LoanApp</h1>
<form method="post" action="/apply?step={{.Step}}">
  <p>Step {{.Step}} of {{.Steps}}</p>
  {{- range .Fields}}
  <label>{{.}} <input name="{{.}}"></label>
  {{- end}}
  <button type="submit">Continue</button>
</form>
</body>
</html>`))

var applyFields = []string{"loanType", "employment", "income", "loanAmount", "firstName", "lastName", "mobile", "email", "gender", "dob", "pan", "pincode"}

const applySteps = 3

// ApplyForm renders the loan application form. ?step must be 1 to 3; any
// other value is a render failure.
// GET /apply
func (h *DemoHandler) ApplyForm(w http.ResponseWriter, r *http.Request) error {
	step, err := parseStep(r)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return applyPage.Execute(w, map[string]any{"Step": step, "Steps": applySteps, "Fields": applyFields})
}

type applyResponse struct {
	NextStep  int               `json:"nextStep,omitempty"`
	Completed bool              `json:"completed,omitempty"`
	Message   string            `json:"message,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// SubmitApplication validates one step of the form. Processing failures are
// logged with the submitted form data, which the redactor scrubs.
// POST /apply
func (h *DemoHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	form := make(map[string]any, len(r.PostForm))
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	step, err := parseStep(r)
	if err != nil {
		h.logSubmissionFailure(r.Context(), err, step, r.PostForm.Get("email"), form)
		writeJSON(w, http.StatusBadRequest, applyResponse{Message: "An error occurred while processing your application. Please try again."})
		return
	}

	if errs := validateApplication(r.PostForm.Get("dob"), r.PostForm.Get("pan"), h.now()); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, applyResponse{Errors: errs})
		return
	}

	if step < applySteps {
		writeJSON(w, http.StatusOK, applyResponse{NextStep: step + 1})
		return
	}
	writeJSON(w, http.StatusOK, applyResponse{Completed: true, Message: "Application Completed ✅"})
}

func (h *DemoHandler) logSubmissionFailure(ctx context.Context, err error, step int, email string, form map[string]any) {
	if h.loggers.Default == nil {
		h.logger.Error("form submission failed", "error", err)
		return
	}
	userID := email
	if userID == "" {
		userID = domain.AnonymousUser
	}
	h.loggers.Default.Log(ctx, err, domain.Fields{
		Component: "LoanApplicationForm",
		Action:    "form_submission",
		UserID:    userID,
		Extra:     map[string]any{"step": step, "formData": form},
	})
}

func parseStep(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("step")
	if raw == "" {
		return 1, nil
	}
	step, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid application step %q: %w", raw, err)
	}
	if step < 1 || step > applySteps {
		return step, fmt.Errorf("application step %d out of range", step)
	}
	return step, nil
}

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// validateApplication checks the fields with rules beyond "required".
func validateApplication(dob, pan string, now time.Time) map[string]string {
	errs := make(map[string]string)

	if dob == "" {
		errs["dob"] = "Date of Birth is required"
	} else if born, err := time.Parse("2006-01-02", dob); err != nil {
		errs["dob"] = "Invalid Date of Birth"
	} else if ageOn(born, now) < 18 {
		errs["dob"] = "You must be at least 18 years old"
	}

	pan = strings.TrimSpace(pan)
	if pan == "" {
		errs["pan"] = "PAN Number is required"
	} else if !panPattern.MatchString(pan) {
		errs["pan"] = "Invalid PAN format (e.g., ABCDE1234F)"
	}
	return errs
}

func ageOn(born, now time.Time) int {
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
