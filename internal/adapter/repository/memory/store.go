package memory

import (
	"context"
	"sync"

	"github.com/V4T54L/loanapp/internal/domain"
)

// LogStore is a process-local domain.LogStore.
type LogStore struct {
	mu      sync.Mutex
	records []domain.ErrorRecord
}

func NewLogStore() *LogStore {
	return &LogStore{}
}

func (s *LogStore) Append(ctx context.Context, record domain.ErrorRecord, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = domain.KeepNewest(append(s.records, record), capacity)
	return nil
}

func (s *LogStore) All(ctx context.Context) ([]domain.ErrorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ErrorRecord(nil), s.records...), nil
}

func (s *LogStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

// SessionStore is a process-local domain.SessionStore; the session lasts as
// long as the process.
type SessionStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{values: make(map[string]string)}
}

func (s *SessionStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *SessionStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
