package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/loanapp/internal/adapter/api"
	"github.com/V4T54L/loanapp/internal/adapter/metrics"
	"github.com/V4T54L/loanapp/internal/adapter/pii"
	kafkasink "github.com/V4T54L/loanapp/internal/adapter/repository/kafka"
	"github.com/V4T54L/loanapp/internal/adapter/repository/postgres"
	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/pkg/config"
	"github.com/V4T54L/loanapp/internal/pkg/logger"
	"github.com/V4T54L/loanapp/internal/usecase"
)

const (
	sinkRetryCount   = 3
	sinkRetryBackoff = 500 * time.Millisecond
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.NewCollectorMetrics(reg)

	// --- Database ---
	var db *sql.DB
	if cfg.Collector.PostgresURL != "" {
		db, err = sql.Open("postgres", cfg.Collector.PostgresURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	// --- Sink ---
	var sink domain.ReportSink
	switch cfg.Collector.Sink {
	case "kafka":
		writer := kafkasink.NewWriter(cfg.Collector.KafkaBrokers, cfg.Collector.KafkaTopic)
		defer writer.Close()
		sink = kafkasink.NewReportSink(writer, log)
	default:
		if db == nil {
			log.Error("POSTGRES_URL is required for the postgres sink")
			os.Exit(1)
		}
		pgSink := postgres.NewReportSink(db, log)
		if err := pgSink.EnsureSchema(ctx); err != nil {
			log.Error("failed to prepare collector schema", "error", err)
			os.Exit(1)
		}
		sink = pgSink
	}

	var apiKeyRepo domain.APIKeyRepository
	if cfg.Collector.RequireAPIKey {
		if db == nil {
			log.Error("POSTGRES_URL is required when COLLECTOR_REQUIRE_API_KEY is set")
			os.Exit(1)
		}
		apiKeyRepo = postgres.NewAPIKeyRepository(db, log, cfg.Collector.APIKeyCacheTTL, m)
	}

	// --- Use cases and router ---
	redactor := pii.NewRedactor(cfg.ErrorLog.PIIFieldList(), log)
	ingest := usecase.NewIngestReportUseCase(sink, redactor, log, sinkRetryCount, sinkRetryBackoff)

	server := &http.Server{
		Addr:         cfg.Collector.Addr,
		Handler:      api.NewCollectorRouter(cfg, log, apiKeyRepo, ingest, m),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	adminServer := &http.Server{
		Addr: cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(func(w http.ResponseWriter, r *http.Request) {
			if db == nil {
				_, _ = w.Write([]byte("OK"))
				return
			}
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("OK"))
		}, reg),
	}

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()
	go func() {
		log.Info("starting collector", "addr", server.Addr, "sink", cfg.Collector.Sink, "require_api_key", cfg.Collector.RequireAPIKey)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("collector failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("collector shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}
	log.Info("servers shut down gracefully")
}
