package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
)

func TestHTTPReporter_Send(t *testing.T) {
	var got domain.ErrorRecord
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	r := NewHTTPReporter(time.Second, "secret")
	if err := r.Send(context.Background(), srv.URL, testRecord()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if headers.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", headers.Get("Content-Type"))
	}
	if headers.Get("X-Error-Logger") != "1.0" {
		t.Errorf("X-Error-Logger = %q", headers.Get("X-Error-Logger"))
	}
	if headers.Get("X-API-Key") != "secret" {
		t.Errorf("X-API-Key = %q", headers.Get("X-API-Key"))
	}
	if got.Message != "income must be positive" || got.Context.Component != "LoanForm" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestHTTPReporter_Failures(t *testing.T) {
	t.Run("Non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := NewHTTPReporter(0, "").Send(context.Background(), srv.URL, testRecord())
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
			t.Fatalf("expected StatusError 500, got %v", err)
		}
		if err.Error() != "API logging failed: 500" {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("No API key header when unset", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Header["X-Api-Key"]; ok {
				t.Error("X-API-Key should not be sent")
			}
		}))
		defer srv.Close()
		if err := NewHTTPReporter(0, "").Send(context.Background(), srv.URL, testRecord()); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("Unreachable endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		if err := NewHTTPReporter(time.Second, "").Send(context.Background(), url, testRecord()); err == nil {
			t.Fatal("expected a transport error")
		}
	})

	t.Run("Invalid endpoint", func(t *testing.T) {
		if err := NewHTTPReporter(0, "").Send(context.Background(), "://bad", testRecord()); err == nil {
			t.Fatal("expected a request error")
		}
	})
}
