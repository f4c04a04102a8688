package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/loanapp/internal/adapter/metrics"
)

// A key is valid if it exists, is active, and has not expired.
const validKeyQuery = `SELECT EXISTS(SELECT 1 FROM api_keys WHERE key = $1 AND is_active = true AND (expires_at IS NULL OR expires_at > NOW()))`

type cacheEntry struct {
	isValid   bool
	expiresAt time.Time
}

// APIKeyRepository validates collector API keys against PostgreSQL, with an
// in-memory, time-based cache in front. Lookup errors are never cached.
type APIKeyRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cacheTTL time.Duration
	metrics  *metrics.CollectorMetrics
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewAPIKeyRepository creates a new instance of the PostgreSQL API key repository.
func NewAPIKeyRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.CollectorMetrics) *APIKeyRepository {
	return &APIKeyRepository{
		db:       db,
		logger:   logger.With("component", "apikey_repository"),
		cacheTTL: cacheTTL,
		metrics:  m,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// IsValid reports whether key may submit reports.
func (r *APIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	if valid, ok := r.cached(key); ok {
		if r.metrics != nil {
			r.metrics.APIKeyCacheHits.Inc()
		}
		return valid, nil
	}
	if r.metrics != nil {
		r.metrics.APIKeyCacheMisses.Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have filled the entry while we waited.
	if entry, ok := r.cache[key]; ok && r.now().Before(entry.expiresAt) {
		return entry.isValid, nil
	}

	var isValid bool
	if err := r.db.QueryRowContext(ctx, validKeyQuery, key).Scan(&isValid); err != nil {
		r.logger.Error("failed to validate API key in database", "error", err)
		return false, fmt.Errorf("api key lookup: %w", err)
	}

	r.cache[key] = cacheEntry{isValid: isValid, expiresAt: r.now().Add(r.cacheTTL)}
	r.evictExpiredLocked()
	return isValid, nil
}

func (r *APIKeyRepository) cached(key string) (bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !r.now().Before(entry.expiresAt) {
		return false, false
	}
	return entry.isValid, true
}

// evictExpiredLocked drops stale entries so that rejected random keys do not
// accumulate.
func (r *APIKeyRepository) evictExpiredLocked() {
	now := r.now()
	for k, e := range r.cache {
		if !now.Before(e.expiresAt) {
			delete(r.cache, k)
		}
	}
}
