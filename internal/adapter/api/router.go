package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/loanapp/internal/adapter/api/handler"
	"github.com/V4T54L/loanapp/internal/adapter/api/middleware"
	"github.com/V4T54L/loanapp/internal/adapter/metrics"
	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/pkg/config"
)

// NewCollectorRouter creates the HTTP router of the report collector.
// apiKeyRepo is only consulted when COLLECTOR_REQUIRE_API_KEY is set.
func NewCollectorRouter(
	cfg *config.Config,
	logger *slog.Logger,
	apiKeyRepo domain.APIKeyRepository,
	ingester handler.ReportIngester,
	m *metrics.CollectorMetrics,
) http.Handler {
	mux := http.NewServeMux()

	var reports http.Handler = handler.NewReportHandler(ingester, logger, cfg.Collector.MaxReportSize, m)
	if cfg.Collector.RequireAPIKey {
		reports = middleware.Auth(apiKeyRepo, logger)(reports)
	}
	mux.Handle("POST /errors", reports)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}
