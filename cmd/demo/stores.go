package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/loanapp/internal/adapter/api/handler"
	"github.com/V4T54L/loanapp/internal/adapter/repository/file"
	"github.com/V4T54L/loanapp/internal/adapter/repository/memory"
	redisrepo "github.com/V4T54L/loanapp/internal/adapter/repository/redis"
	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/pkg/config"
)

const redisHealthInterval = 5 * time.Second

// stores are the persistence collaborators shared by every logger.
type stores struct {
	logs     domain.LogStore
	sessions domain.SessionStore
	health   handler.HealthReporter
	closers  []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openStores builds the log and session stores for STORE_BACKEND. With
// redis, the file store in STORE_DIR takes writes while redis is down.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	s := &stores{}

	switch cfg.Store.Backend {
	case "none":
		s.sessions = memory.NewSessionStore()

	case "memory":
		s.logs = memory.NewLogStore()
		s.sessions = memory.NewSessionStore()

	case "file":
		fs, err := file.NewLogStore(cfg.Store.Dir, cfg.Store.Key, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, fs.Close)
		s.logs = fs
		s.sessions = memory.NewSessionStore()

	case "redis":
		opts, err := redis.ParseURL(cfg.Store.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		s.closers = append(s.closers, client.Close)

		fallback, err := file.NewLogStore(cfg.Store.Dir, cfg.Store.Key, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, fallback.Close)

		rs := redisrepo.NewLogStore(client, cfg.Store.Key, fallback, log)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("could not connect to redis, local error logs go to the file store until it recovers", "error", err)
		}
		go rs.StartHealthCheck(ctx, redisHealthInterval)

		s.logs = rs
		s.health = rs
		s.sessions = redisrepo.NewSessionStore(client, "loanapp:", cfg.Store.SessionTTL)

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
	return s, nil
}
