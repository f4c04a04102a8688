package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/loanapp/internal/adapter/api/handler"
	"github.com/V4T54L/loanapp/internal/adapter/api/middleware"
	"github.com/V4T54L/loanapp/internal/boundary"
)

// DemoRouterDeps are the collaborators of the demo host router.
type DemoRouterDeps struct {
	Demo   *handler.DemoHandler
	Admin  *handler.AdminHandler
	Broker *handler.RecordBroker
	// Reporter receives panics that escape every boundary.
	Reporter boundary.Reporter
	// Page configures the page-level boundary around the loan form.
	Page boundary.Config
	// DiagnosticsSecret, when set, requires a signed bearer token on /logs.
	DiagnosticsSecret string
	Logger            *slog.Logger
}

// NewDemoRouter creates the router of the demo host: the loan form under
// nested boundaries, the error demo, and the local store diagnostics.
func NewDemoRouter(deps DemoRouterDeps) http.Handler {
	mux := http.NewServeMux()

	page := boundary.Middleware(deps.Page, deps.Reporter, deps.Logger)
	form := boundary.Middleware(boundary.Config{
		LogLevel:    boundary.LevelConsole,
		Endpoint:    deps.Page.Endpoint,
		Development: deps.Page.Development,
		Component:   "LoanApplicationForm",
	}, deps.Reporter, deps.Logger)
	mux.Handle("GET /apply", page(form(boundary.HandlerFunc(deps.Demo.ApplyForm))))
	mux.HandleFunc("POST /apply", deps.Demo.SubmitApplication)

	widget := boundary.Middleware(boundary.Config{
		LogLevel:  boundary.LevelConsole,
		Component: "BuggyComponent",
		Fallback:  handler.WidgetFallback,
	}, deps.Reporter, deps.Logger)
	mux.Handle("GET /demo/widget", widget(boundary.HandlerFunc(deps.Demo.Widget)))
	mux.HandleFunc("POST /demo/errors/{kind}", deps.Demo.TriggerError)

	guard := func(h http.Handler) http.Handler { return h }
	if deps.DiagnosticsSecret != "" {
		guard = middleware.RequireToken(deps.DiagnosticsSecret, deps.Logger)
	}
	mux.Handle("GET /logs", guard(http.HandlerFunc(deps.Admin.ListLogs)))
	mux.Handle("DELETE /logs", guard(http.HandlerFunc(deps.Admin.ClearLogs)))
	mux.Handle("GET /logs/export", guard(http.HandlerFunc(deps.Admin.ExportLogs)))
	if deps.Broker != nil {
		mux.Handle("GET /logs/stream", guard(deps.Broker))
	}
	mux.HandleFunc("GET /health", deps.Admin.HealthCheck)

	var h http.Handler = mux
	h = middleware.Recover(deps.Reporter, deps.Logger)(h)
	h = middleware.Environment(h)
	return middleware.Logging(deps.Logger)(h)
}
