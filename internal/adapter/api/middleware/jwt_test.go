package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/V4T54L/loanapp/internal/pkg/token"
)

func TestRequireToken(t *testing.T) {
	good, err := token.Generate("ops", "diag", time.Minute)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	forged, _ := token.Generate("ops", "other", time.Minute)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + good, "", http.StatusTeapot},
		{"lowercase scheme", "bearer " + good, "", http.StatusTeapot},
		{"wrong scheme", "Basic " + good, "", http.StatusUnauthorized},
		{"forged", "Bearer " + forged, "", http.StatusUnauthorized},
		{"query parameter", "", good, http.StatusTeapot},
	}
	h := RequireToken("diag", discardLogger())(okHandler)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/logs"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}
