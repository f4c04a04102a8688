package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/usecase"
)

// LogDiagnostics is the local-store side of the error logger.
type LogDiagnostics interface {
	StoredLogs(ctx context.Context) []domain.ErrorRecord
	ClearStoredLogs(ctx context.Context)
	ExportLogs(ctx context.Context) (usecase.Export, error)
}

// HealthReporter is implemented by stores that can lose their backend.
type HealthReporter interface {
	Available() bool
}

// AdminHandler serves the diagnostics endpoints over the local store.
type AdminHandler struct {
	logs   LogDiagnostics
	health HealthReporter
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. health may be nil.
func NewAdminHandler(logs LogDiagnostics, health HealthReporter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{logs: logs, health: health, logger: logger.With("component", "admin_handler")}
}

// HealthCheck reports "ok", or "degraded" while the store runs on its fallback.
// GET /health
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.health != nil && !h.health.Available() {
		status = "degraded"
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": status})
}

// ListLogs returns the stored records, oldest first. ?limit=N keeps the
// newest N.
// GET /logs
func (h *AdminHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	records := h.logs.StoredLogs(r.Context())

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if limit > 0 {
			records = domain.KeepNewest(records, limit)
		}
	}

	h.respondWithJSON(w, http.StatusOK, records)
}

// ClearLogs empties the local store.
// DELETE /logs
func (h *AdminHandler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	h.logs.ClearStoredLogs(r.Context())
	h.logger.Info("local error store cleared", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

// ExportLogs downloads the local store as a dated JSON file.
// GET /logs/export
func (h *AdminHandler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	export, err := h.logs.ExportLogs(r.Context())
	if err != nil {
		h.logger.Error("failed to export error logs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

func (h *AdminHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
