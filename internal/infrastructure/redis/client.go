// Package redis connects to the Redis server backing the device profile
// store and the login rate limiter.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/config"
)

const defaultPingTimeout = 5 * time.Second

// ErrConnectionFailed is returned when the initial ping fails.
var ErrConnectionFailed = errors.New("redis: connection failed")

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.Addr, err)
	}
	return client, nil
}

// HealthCheck pings the server.
func HealthCheck(ctx context.Context, client goredis.UniversalClient) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	return nil
}
