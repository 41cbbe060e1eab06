package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/turtacn/ccs/internal/domain/service"
	"github.com/turtacn/ccs/pkg/logger"
)

// fixed-window counter evaluated atomically. Returns {count, pttl}.
var admitScript = goredis.NewScript(`
local key = KEYS[1]
local window_ms = tonumber(ARGV[1])

local count = redis.call('INCR', key)
if count == 1 then
    redis.call('PEXPIRE', key, window_ms)
end

local pttl = redis.call('PTTL', key)
if pttl < 0 then
    redis.call('PEXPIRE', key, window_ms)
    pttl = window_ms
end

return {count, pttl}
`)

// RedisWindowGate is the distributed request gate used when multiple
// instances must share one budget per client. Redis unavailability degrades
// to allow: admission control protects capacity, it is not a security
// boundary.
type RedisWindowGate struct {
	client      *goredis.Client
	window      time.Duration
	maxRequests int
	log         logger.Logger
}

// NewRedisWindowGate builds the distributed gate.
func NewRedisWindowGate(client *goredis.Client, window time.Duration, maxRequests int, log logger.Logger) *RedisWindowGate {
	return &RedisWindowGate{
		client:      client,
		window:      window,
		maxRequests: maxRequests,
		log:         log.WithComponent("redis_request_gate"),
	}
}

func gateKey(clientKey string) string {
	return fmt.Sprintf("ccs:gate:%s", clientKey)
}

// Admit records one request for clientKey and reports the verdict.
func (g *RedisWindowGate) Admit(ctx context.Context, clientKey string) service.AdmitResult {
	res, err := admitScript.Run(ctx, g.client,
		[]string{gateKey(clientKey)},
		g.window.Milliseconds(),
	).Result()
	if err != nil {
		g.log.Warn(ctx, "gate check failed, admitting request",
			logger.String("client_key", clientKey),
			logger.Error(err),
		)
		return service.AdmitResult{Allowed: true, Limit: g.maxRequests, Remaining: g.maxRequests - 1}
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		g.log.Warn(ctx, "unexpected gate script reply, admitting request",
			logger.String("client_key", clientKey),
		)
		return service.AdmitResult{Allowed: true, Limit: g.maxRequests, Remaining: g.maxRequests - 1}
	}

	count, _ := values[0].(int64)
	pttl, _ := values[1].(int64)

	if int(count) > g.maxRequests {
		return service.AdmitResult{
			Allowed:    false,
			Limit:      g.maxRequests,
			Remaining:  0,
			RetryAfter: time.Duration(pttl) * time.Millisecond,
		}
	}

	return service.AdmitResult{
		Allowed:   true,
		Limit:     g.maxRequests,
		Remaining: g.maxRequests - int(count),
	}
}

// Close is a no-op; the redis client is owned by the caller.
func (g *RedisWindowGate) Close() error {
	return nil
}
