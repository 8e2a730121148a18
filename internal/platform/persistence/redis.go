package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodial-tipbot/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisDB owns the key-value store connection. A single address yields a plain client,
// several addresses a cluster client; both satisfy redis.UniversalClient.
type RedisDB struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewRedisDB(ctx context.Context, logger *slog.Logger, cfg *config.RedisConfig) (*RedisDB, error) {
	addrs := cfg.AddrList()
	if len(addrs) == 0 {
		return nil, errors.New("at least one redis address is required")
	}

	var client redis.UniversalClient
	if len(addrs) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        addrs,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         addrs[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Connected to Redis", "addrs", addrs, "cluster", len(addrs) > 1)

	return &RedisDB{
		client: client,
		logger: logger,
	}, nil
}

func (db *RedisDB) Client() redis.UniversalClient {
	return db.client
}

// Ping checks the store is reachable, used by the admin health endpoint
func (db *RedisDB) Ping(ctx context.Context) error {
	if err := db.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func (db *RedisDB) Close() error {
	if err := db.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	db.logger.Info("Closed Redis connection")
	return nil
}
