package usecase

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/google/uuid"
)

const sessionSuffixLen = 9

// SessionTracker hands out the session id attached to every record. The id is
// created on first use and kept in the session store so that it stays stable
// until the store is cleared.
type SessionTracker struct {
	store  domain.SessionStore
	key    string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewSessionTracker creates a tracker. A nil store yields "server-session".
func NewSessionTracker(store domain.SessionStore, key string, logger *slog.Logger) *SessionTracker {
	return &SessionTracker{
		store:  store,
		key:    key,
		logger: logger.With("component", "session_tracker"),
		now:    time.Now,
	}
}

// ID returns the current session id, creating and storing one if needed.
func (s *SessionTracker) ID(ctx context.Context) string {
	if s == nil || s.store == nil {
		return domain.ServerSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("failed to read session id, issuing a new one", "error", err)
	} else if ok && id != "" {
		return id
	}

	id = newSessionID(s.now())
	if err := s.store.Set(ctx, s.key, id); err != nil {
		s.logger.Warn("failed to store session id", "error", err, "session_id", id)
	}
	return id
}

// Reset forgets the current session id.
func (s *SessionTracker) Reset(ctx context.Context) error {
	if s == nil || s.store == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to delete session id: %w", err)
	}
	return nil
}

// newSessionID formats session-<unix millis>-<9 base36 chars>.
func newSessionID(now time.Time) string {
	u := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	if len(suffix) < sessionSuffixLen {
		suffix = strings.Repeat("0", sessionSuffixLen-len(suffix)) + suffix
	}
	return fmt.Sprintf("session-%d-%s", now.UnixMilli(), suffix[len(suffix)-sessionSuffixLen:])
}
