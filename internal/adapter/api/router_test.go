package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/loanapp/internal/adapter/api/handler"
	"github.com/V4T54L/loanapp/internal/adapter/channel"
	"github.com/V4T54L/loanapp/internal/adapter/metrics"
	"github.com/V4T54L/loanapp/internal/adapter/pii"
	"github.com/V4T54L/loanapp/internal/adapter/repository/file"
	"github.com/V4T54L/loanapp/internal/boundary"
	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/domain/mocks"
	"github.com/V4T54L/loanapp/internal/pkg/config"
	"github.com/V4T54L/loanapp/internal/pkg/token"
	"github.com/V4T54L/loanapp/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
)

type stack struct {
	sink  *mocks.MockReportSink
	store *file.LogStore
	demo  *httptest.Server
}

// newStack wires the demo host to a collector the way cmd/demo and
// cmd/collector do, with the report sink mocked.
func newStack(t *testing.T, sinkErr error, apiKey string) *stack {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{Collector: config.CollectorConfig{MaxReportSize: 1 << 20, RequireAPIKey: true}}
	sink := &mocks.MockReportSink{WriteErr: sinkErr}
	ingest := usecase.NewIngestReportUseCase(sink, pii.NewRedactor([]string{"email"}, log), log, 1, time.Millisecond)
	keys := &mocks.MockAPIKeyRepository{ValidKeys: map[string]bool{"secret": true}}
	collector := httptest.NewServer(NewCollectorRouter(cfg, log, keys, ingest, metrics.NewCollectorMetrics(nil)))
	t.Cleanup(collector.Close)

	store, err := file.NewLogStore(t.TempDir(), "appErrorLogs", log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	errLogger, err := usecase.NewErrorLogger(usecase.LoggerConfig{
		EnableAPI:   true,
		APIEndpoint: collector.URL + "/errors",
	}, store, nil, log, usecase.WithRemote(channel.NewHTTPReporter(2*time.Second, apiKey)))
	if err != nil {
		t.Fatal(err)
	}

	demo := httptest.NewServer(NewDemoRouter(DemoRouterDeps{
		Demo:     handler.NewDemoHandler(handler.DemoLoggers{API: errLogger, Default: errLogger}, log),
		Admin:    handler.NewAdminHandler(errLogger, nil, log),
		Reporter: errLogger,
		Page:     boundary.Config{LogLevel: boundary.LevelLocalStorage},
		Logger:   log,
	}))
	t.Cleanup(demo.Close)

	return &stack{sink: sink, store: store, demo: demo}
}

func (s *stack) storedLogs(t *testing.T) []domain.ErrorRecord {
	t.Helper()
	resp, err := http.Get(s.demo.URL + "/logs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var records []domain.ErrorRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	return records
}

func (s *stack) trigger(t *testing.T, kind string) {
	t.Helper()
	resp, err := http.Post(s.demo.URL+"/demo/errors/"+kind, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger %s: status %d", kind, resp.StatusCode)
	}
}

func TestReportReachesCollector(t *testing.T) {
	s := newStack(t, nil, "secret")
	s.trigger(t, "api")

	reports := s.sink.Reports()
	if len(reports) != 1 {
		t.Fatalf("expected one stored report, got %d", len(reports))
	}
	r := reports[0]
	if r.Record.Message != "API logging test error" || r.Record.Context.Action != "api_test" {
		t.Errorf("unexpected report: %+v", r.Record)
	}
	if r.ID == "" || r.ReceivedAt.IsZero() {
		t.Errorf("collector should assign id and receipt time: %+v", r)
	}
	if got := s.storedLogs(t); len(got) != 0 {
		t.Errorf("delivered reports must not reach the local store, got %d", len(got))
	}
}

func TestFailedDeliveryFallsBackToLocalStore(t *testing.T) {
	tests := []struct {
		name    string
		sinkErr error
		apiKey  string
		wantErr string
	}{
		{"collector storage down", io.ErrUnexpectedEOF, "secret", "API logging failed: 500"},
		{"rejected API key", nil, "wrong", "API logging failed: 401"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStack(t, tt.sinkErr, tt.apiKey)
			s.trigger(t, "api")

			got := s.storedLogs(t)
			if len(got) != 1 {
				t.Fatalf("expected one fallback record, got %d", len(got))
			}
			if got[0].FallbackReason != domain.FallbackReasonAPIFailed || got[0].APIError != tt.wantErr {
				t.Errorf("unexpected fallback annotation: %q %q", got[0].FallbackReason, got[0].APIError)
			}
			if got[0].Message != "API logging test error" {
				t.Errorf("Message = %q", got[0].Message)
			}
		})
	}
}

func TestDemoRouter_Boundaries(t *testing.T) {
	s := newStack(t, nil, "secret")

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   []string
	}{
		{"form renders", "/apply?step=1", http.StatusOK, []string{"Step 1 of 3"}},
		{"form failure stays inside the form boundary", "/apply?step=9", http.StatusInternalServerError, []string{"Form Error", "Reload Form"}},
		{"widget renders", "/demo/widget", http.StatusOK, []string{"Component working fine!"}},
		{"widget crash uses the custom fallback", "/demo/widget?crash=true", http.StatusInternalServerError, []string{"Error Boundary Caught:", "Intentional error for testing Error Boundary", "Reset"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(s.demo.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(string(body), want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestDemoRouter_ExportAndClear(t *testing.T) {
	s := newStack(t, io.ErrUnexpectedEOF, "secret")
	s.trigger(t, "api")

	resp, err := http.Get(s.demo.URL + "/logs/export")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Disposition"), `attachment; filename="error-logs-`) {
		t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
	}

	req, _ := http.NewRequest(http.MethodDelete, s.demo.URL+"/logs", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := s.storedLogs(t); len(got) != 0 {
		t.Errorf("expected an empty store after clear, got %d", len(got))
	}
}

func TestDemoRouter_DiagnosticsToken(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	errLogger, err := usecase.NewErrorLogger(usecase.LoggerConfig{EnableLocalStore: true}, &mocks.MockLogStore{}, nil, log)
	if err != nil {
		t.Fatal(err)
	}
	router := NewDemoRouter(DemoRouterDeps{
		Demo:              handler.NewDemoHandler(handler.DemoLoggers{Default: errLogger}, log),
		Admin:             handler.NewAdminHandler(errLogger, nil, log),
		Reporter:          errLogger,
		DiagnosticsSecret: "diag",
		Logger:            log,
	})
	tok, err := token.Generate("ops", "diag", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		auth       string
		wantStatus int
	}{
		{"list without token", http.MethodGet, "/logs", "", http.StatusUnauthorized},
		{"list with token", http.MethodGet, "/logs", "Bearer " + tok, http.StatusOK},
		{"clear without token", http.MethodDelete, "/logs", "", http.StatusUnauthorized},
		{"export with token", http.MethodGet, "/logs/export", "Bearer " + tok, http.StatusOK},
		{"health stays open", http.MethodGet, "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestAdminRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewLoggerMetrics(reg)
	m.RecordsTotal.WithLabelValues("error").Inc()

	health := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	rr := httptest.NewRecorder()
	NewAdminRouter(health, reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `loanapp_errorlog_records_total{level="error"} 1`) {
		t.Errorf("unexpected metrics output (%d):\n%s", rr.Code, rr.Body.String())
	}
}
