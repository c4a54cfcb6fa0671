// Package store provides the durable backends of the delivery ledger.
package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rudransh-shrivastava/peer-relay/internal/db"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var (
	_ LedgerStore = (*FileStore)(nil)
	_ LedgerStore = (*SQLStore)(nil)
	_ LedgerStore = (*RedisStore)(nil)
)

// Config selects and locates a backend.
type Config struct {
	Backend   string
	Path      string
	RedisAddr string
	RedisDB   int
	RedisPass string
}

// New opens the backend named by cfg.Backend.
func New(ctx context.Context, cfg Config) (LedgerStore, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.Path), nil
	case BackendSQLite:
		gdb, err := db.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(gdb), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
