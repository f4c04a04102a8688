package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/V4T54L/loanapp/internal/adapter/api"
	"github.com/V4T54L/loanapp/internal/adapter/api/handler"
	"github.com/V4T54L/loanapp/internal/adapter/channel"
	"github.com/V4T54L/loanapp/internal/adapter/metrics"
	"github.com/V4T54L/loanapp/internal/adapter/pii"
	"github.com/V4T54L/loanapp/internal/boundary"
	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/pkg/config"
	"github.com/V4T54L/loanapp/internal/pkg/logger"
	"github.com/V4T54L/loanapp/internal/usecase"
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

	// --- Stores ---
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	sessions := usecase.NewSessionTracker(st.sessions, cfg.Store.SessionKey, log)

	// --- Channels ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	loggerMetrics := metrics.NewLoggerMetrics(reg)

	console := channel.NewConsole(os.Stdout)
	remote := channel.NewHTTPReporter(cfg.ErrorLog.APITimeout, cfg.ErrorLog.APIKey)
	redactor := pii.NewRedactor(cfg.ErrorLog.PIIFieldList(), log)
	broker := handler.NewRecordBroker(ctx, log, 0)

	shared := []usecase.Option{
		usecase.WithConsole(console),
		usecase.WithRemote(remote),
		usecase.WithRedactor(redactor),
		usecase.WithMetrics(loggerMetrics),
		usecase.WithObserver(broker.Publish),
	}

	mainCfg := usecase.LoggerConfig{
		EnableConsole:      cfg.ErrorLog.EnableConsole,
		EnableLocalStore:   cfg.ErrorLog.EnableLocalStore,
		EnableAPI:          cfg.ErrorLog.EnableAPI,
		APIEndpoint:        cfg.ErrorLog.APIEndpoint,
		MaxLocalEntries:    cfg.ErrorLog.MaxLocalEntries,
		Level:              domain.Level(strings.ToLower(cfg.ErrorLog.Level)),
		SentryFlushTimeout: cfg.Sentry.FlushTimeout,
	}
	mainOpts := append([]usecase.Option{}, shared...)
	if cfg.Sentry.DSN != "" {
		sentryReporter, err := channel.NewSentryReporter(cfg.Sentry.DSN, cfg.AppEnv)
		if err != nil {
			log.Error("failed to initialize sentry, continuing without it", "error", err)
		} else {
			mainCfg.EnableSentry = cfg.ErrorLog.EnableSentry
			mainOpts = append(mainOpts, usecase.WithEventChannel(sentryReporter))
		}
	}

	// --- Loggers ---
	errorLogger := mustLogger(log, mainCfg, st.logs, sessions, mainOpts...)

	apiEndpoint := cfg.ErrorLog.APIEndpoint
	if apiEndpoint == "" {
		apiEndpoint = "http://localhost" + cfg.Collector.Addr + "/errors"
	}
	consoleLogger := mustLogger(log, usecase.LoggerConfig{EnableConsole: true, Level: domain.LevelError}, st.logs, sessions, shared...)
	localLogger := mustLogger(log, usecase.LoggerConfig{
		EnableLocalStore: true,
		Level:            domain.LevelWarn,
		MaxLocalEntries:  cfg.ErrorLog.MaxLocalEntries,
	}, st.logs, sessions, shared...)
	apiLogger := mustLogger(log, usecase.LoggerConfig{
		EnableConsole:    true,
		EnableLocalStore: true,
		EnableAPI:        true,
		APIEndpoint:      apiEndpoint,
		Level:            domain.LevelInfo,
		MaxLocalEntries:  cfg.ErrorLog.MaxLocalEntries,
	}, st.logs, sessions, shared...)
	demoLoggers := handler.DemoLoggers{Console: consoleLogger, Local: localLogger, API: apiLogger, Default: errorLogger}

	// --- Servers ---
	admin := handler.NewAdminHandler(errorLogger, st.health, log)
	demoServer := &http.Server{
		Addr: cfg.DemoServerAddr,
		Handler: api.NewDemoRouter(api.DemoRouterDeps{
			Demo:     handler.NewDemoHandler(demoLoggers, log),
			Admin:    admin,
			Broker:   broker,
			Reporter: errorLogger,
			Page: boundary.Config{
				LogLevel:    cfg.Boundary.LogLevel,
				Endpoint:    cfg.Boundary.APIEndpoint,
				Development: cfg.Development(),
				Component:   "LoanApplicationPage",
			},
			DiagnosticsSecret: cfg.Diagnostics.JWTSecret,
			Logger:            log,
		}),
		ReadTimeout:  5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(admin.HealthCheck, reg),
	}

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()
	go func() {
		log.Info("starting demo server", "addr", demoServer.Addr, "store", cfg.Store.Backend)
		if err := demoServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("demo server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := demoServer.Shutdown(shutdownCtx); err != nil {
		log.Error("demo server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}
	for _, l := range []*usecase.ErrorLogger{consoleLogger, localLogger, apiLogger, errorLogger} {
		if err := l.Close(shutdownCtx); err != nil {
			log.Error("error deliveries did not finish", "error", err)
		}
	}

	log.Info("servers shut down gracefully")
}

func mustLogger(log *slog.Logger, cfg usecase.LoggerConfig, store domain.LogStore, sessions *usecase.SessionTracker, opts ...usecase.Option) *usecase.ErrorLogger {
	l, err := usecase.NewErrorLogger(cfg, store, sessions, log, opts...)
	if err != nil {
		log.Error("failed to create error logger", "error", err)
		os.Exit(1)
	}
	return l
}
