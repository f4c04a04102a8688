package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/gofrs/flock"
)

const (
	filePerm       = 0644
	lockRetryDelay = 10 * time.Millisecond
)

// LogStore keeps the local error log as one JSON array file. Every
// read-modify-write holds a process mutex and an flock on a sibling lock
// file, so processes sharing the directory never interleave. Writes replace
// the file atomically.
type LogStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu sync.Mutex
}

// NewLogStore creates a store for <dir>/<key>.json.
func NewLogStore(dir, key string, logger *slog.Logger) (*LogStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log store directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, key+".json")
	return &LogStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With("component", "file_log_store"),
	}, nil
}

// Path returns the backing file.
func (s *LogStore) Path() string { return s.path }

// Append adds a record, keeping at most capacity records.
func (s *LogStore) Append(ctx context.Context, record domain.ErrorRecord, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx, false); err != nil {
		return err
	}
	defer s.release()

	records, err := s.read()
	if err != nil {
		return err
	}
	records = domain.KeepNewest(append(records, record), capacity)
	return s.write(records)
}

// All returns the stored records, oldest first.
func (s *LogStore) All(ctx context.Context) ([]domain.ErrorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx, true); err != nil {
		return nil, err
	}
	defer s.release()

	return s.read()
}

// Clear removes the backing file.
func (s *LogStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx, false); err != nil {
		return err
	}
	defer s.release()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear log store: %w", err)
	}
	s.logger.Info("local error log cleared")
	return nil
}

// Close releases the lock file handle.
func (s *LogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Close()
}

func (s *LogStore) acquire(ctx context.Context, shared bool) error {
	var (
		locked bool
		err    error
	)
	if shared {
		locked, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("failed to lock log store: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock log store %s", s.lock.Path())
	}
	return nil
}

func (s *LogStore) release() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Error("Failed to unlock log store", "error", err)
	}
}

func (s *LogStore) read() ([]domain.ErrorRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []domain.ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("corrupt log store %s: %w", s.path, err)
	}
	return records, nil
}

func (s *LogStore) write(records []domain.ErrorRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal error records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write log store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync log store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return fmt.Errorf("failed to chmod log store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace log store: %w", err)
	}
	return nil
}
