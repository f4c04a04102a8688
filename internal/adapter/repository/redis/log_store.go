package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LogStore implements domain.LogStore with a Redis list. While Redis is
// unreachable, appends go to an optional fallback store; they are replayed
// into the list once the connection recovers.
type LogStore struct {
	client      *redis.Client
	key         string
	fallback    domain.LogStore
	logger      *slog.Logger
	isAvailable atomic.Bool
	capacity    atomic.Int64 // last capacity seen, applied on replay

	// writeMu orders appends against the fallback replay so that replayed
	// records stay ahead of newer ones.
	writeMu sync.Mutex
}

// NewLogStore creates a new Redis-backed LogStore. fallback may be nil.
func NewLogStore(client *redis.Client, key string, fallback domain.LogStore, logger *slog.Logger) *LogStore {
	s := &LogStore{
		client:   client,
		key:      key,
		fallback: fallback,
		logger:   logger.With("component", "redis_log_store"),
	}
	s.isAvailable.Store(true) // Assume available initially
	return s
}

// Available reports whether writes currently go to Redis.
func (s *LogStore) Available() bool { return s.isAvailable.Load() }

// Append pushes a record and trims the list to the newest capacity entries.
func (s *LogStore) Append(ctx context.Context, record domain.ErrorRecord, capacity int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.capacity.Store(int64(capacity))

	if !s.isAvailable.Load() {
		return s.appendFallback(ctx, record, capacity, nil)
	}

	err := s.push(ctx, capacity, record)
	if err != nil && isNetworkError(err) {
		if s.isAvailable.CompareAndSwap(true, false) {
			s.logger.Error("Redis connection lost during write", "error", err)
		}
		return s.appendFallback(ctx, record, capacity, err)
	}
	return err
}

func (s *LogStore) appendFallback(ctx context.Context, record domain.ErrorRecord, capacity int, cause error) error {
	if s.fallback == nil {
		if cause != nil {
			return fmt.Errorf("redis became unavailable and no fallback is configured: %w", cause)
		}
		return errors.New("redis is unavailable and no fallback is configured")
	}
	s.logger.Warn("Redis is unavailable, writing to fallback store")
	return s.fallback.Append(ctx, record, capacity)
}

func (s *LogStore) push(ctx context.Context, capacity int, records ...domain.ErrorRecord) error {
	if len(records) == 0 {
		return nil
	}
	payloads := make([]interface{}, 0, len(records))
	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal error record: %w", err)
		}
		payloads = append(payloads, payload)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, payloads...)
		if capacity > 0 {
			pipe.LTrim(ctx, s.key, int64(-capacity), -1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to RPUSH to redis list: %w", err)
	}
	return nil
}

// All returns the list contents, or the fallback contents while Redis is
// unreachable.
func (s *LogStore) All(ctx context.Context) ([]domain.ErrorRecord, error) {
	if !s.isAvailable.Load() && s.fallback != nil {
		return s.fallback.All(ctx)
	}

	values, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		if isNetworkError(err) && s.fallback != nil {
			s.isAvailable.Store(false)
			return s.fallback.All(ctx)
		}
		return nil, fmt.Errorf("failed to LRANGE redis list: %w", err)
	}

	records := make([]domain.ErrorRecord, 0, len(values))
	for i, v := range values {
		var r domain.ErrorRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			s.logger.Warn("Failed to unmarshal error record from list, skipping", "index", i, "error", err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Clear deletes the list and empties the fallback.
func (s *LogStore) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.fallback != nil {
		if err := s.fallback.Clear(ctx); err != nil {
			return err
		}
	}
	if !s.isAvailable.Load() {
		return nil
	}
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to DEL redis list: %w", err)
	}
	return nil
}

// StartHealthCheck pings Redis every interval and replays the fallback
// store after recovery. It blocks until ctx is done.
func (s *LogStore) StartHealthCheck(ctx context.Context, interval time.Duration) {
	if s.fallback == nil {
		s.logger.Info("No fallback store configured, skipping health check/replayer")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting Redis health check and fallback replayer")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			s.checkHealth(ctx)
		}
	}
}

func (s *LogStore) checkHealth(ctx context.Context) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		if s.isAvailable.CompareAndSwap(true, false) {
			s.logger.Error("Redis connection lost", "error", err)
		}
		return
	}
	if s.isAvailable.Load() {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.logger.Info("Redis connection recovered")
	if err := s.replayFallback(ctx); err != nil {
		s.logger.Error("Failed to replay fallback store after Redis recovery", "error", err)
		return
	}
	s.isAvailable.Store(true)
}

// replayFallback moves the fallback contents into the list and clears the
// fallback on success. The caller holds writeMu.
func (s *LogStore) replayFallback(ctx context.Context) error {
	records, err := s.fallback.All(ctx)
	if err != nil {
		return fmt.Errorf("fallback read failed: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	if err := s.push(ctx, int(s.capacity.Load()), records...); err != nil {
		return fmt.Errorf("fallback replay failed: %w", err)
	}
	if err := s.fallback.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear fallback after successful replay: %w", err)
	}

	s.logger.Info("Fallback replay to Redis completed successfully", "count", len(records))
	return nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
