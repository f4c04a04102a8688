package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/usecase"
)

// responseWriter captures the status code and size for request logs.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += n
	return n, err
}

// Flush keeps SSE streams working behind the logger.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging logs one line per request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			logger.Info("handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", rw.statusCode,
				"bytes", rw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// Environment attaches the caller's user agent and URL to the request
// context, so records logged while serving it carry them.
func Environment(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := usecase.WithEnvironment(r.Context(), usecase.EnvironmentFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Reporter is the subset of the error logger used by Recover.
type Reporter interface {
	Log(ctx context.Context, failure any, fields domain.Fields, opts ...usecase.LogOption) *usecase.Delivery
}

// Recover turns handler panics outside any boundary into a logged error
// record and a plain 500.
func Recover(reporter Reporter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panicked", "panic", rec, "path", r.URL.Path)
				if reporter != nil {
					reporter.Log(r.Context(), usecase.RecoveredError(rec), domain.Fields{Component: "http", Action: r.Method + " " + r.URL.Path})
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
