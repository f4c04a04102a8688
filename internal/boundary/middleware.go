package boundary

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/V4T54L/loanapp/internal/usecase"
)

// Middleware mounts a fresh boundary for every request. The wrapped
// handler's response is buffered, so a failure never leaks partial output;
// a panic or an error passed to Fail produces the recovery view with
// status 500.
func Middleware(cfg Config, reporter Reporter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := usecase.WithEnvironment(r.Context(), usecase.EnvironmentFromRequest(r))
			b := New(cfg, reporter, logger)

			res := Render(ctx, b, func(ctx context.Context) (*bufferedResponse, error) {
				buf := newBufferedResponse()
				next.ServeHTTP(buf, r.WithContext(ctx))
				if buf.failure != nil {
					return nil, buf.failure
				}
				return buf, nil
			})

			if !res.Failed() {
				res.View.writeTo(w)
				return
			}

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusInternalServerError)
			if err := res.Recovery.RenderHTML(w, r.URL.RequestURI()); err != nil {
				logger.Error("failed to render recovery view", "error", err)
			}
		})
	}
}

// HandlerFunc adapts a handler that returns an error. Under Middleware the
// error is a render failure; elsewhere it becomes a plain 500.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f(w, r); err != nil {
		Fail(w, err)
	}
}

// Fail marks the current render as failed.
func Fail(w http.ResponseWriter, err error) {
	if buf, ok := w.(*bufferedResponse); ok {
		buf.failure = err
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

type bufferedResponse struct {
	header  http.Header
	status  int
	body    bytes.Buffer
	failure error
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) writeTo(w http.ResponseWriter) {
	for k, v := range b.header {
		w.Header()[k] = v
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(b.body.Bytes())
}
