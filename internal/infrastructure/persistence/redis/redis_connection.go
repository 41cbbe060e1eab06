// Package redis provides the optional distributed cache tier.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/turtacn/ccs/internal/config"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

// NewClient connects to redis and verifies connectivity with a short ping.
func NewClient(cfg *config.RedisConfig, log logger.Logger) (*goredis.Client, error) {
	addr := "localhost:6379"
	if len(cfg.Addresses) > 0 {
		addr = cfg.Addresses[0]
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ccserrors.ErrServerError("redis connection failed").WithCause(err)
	}

	log.Info(ctx, "redis connection established", logger.String("addr", addr))
	return client, nil
}
