// Package store selects the forecaster's snapshot storage backend.
package store

import (
	"fmt"
	"log/slog"

	"github.com/epicast/epicast/cmd/forecaster/config"
	"github.com/epicast/epicast/pkg/storage"
)

// Store is a storage.Store that must be closed on shutdown.
type Store interface {
	storage.Store
	Close() error
}

type memory struct{ *storage.MemoryStore }

func (m memory) Close() error {
	m.Stop()
	return nil
}

// New opens the backend named by cfg.Storage.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Storage {
	case "memory":
		logger.Info("using in-memory storage", "ttl", cfg.MemoryTTL)
		if cfg.MemoryTTL > 0 {
			return memory{storage.NewMemoryStoreWithTTL(cfg.MemoryTTL, 0)}, nil
		}
		return memory{storage.NewMemoryStore()}, nil

	case "redis":
		logger.Info("using redis storage", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.RedisTTL)
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		return rs, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
