package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"mcp-food-resolver/internal/models"
)

// fixedWindowScript checks and increments a window counter atomically.
// KEYS[1] = counter key
// ARGV[1] = window length in milliseconds
// ARGV[2] = max calls per window
// A denied call does not increment the counter.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[2]) then
    return 0
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return 1
`)

// Redis is a fixed-window limiter shared by every process pointed at the
// same Redis. Windows follow the Redis server clock. Redis errors deny the
// call.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedis(addr, password string, db int, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: rdb, prefix: "food-resolver:ratelimit:", logger: logger.With("component", "ratelimit")}
}

func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Redis) TryAcquire(ctx context.Context, source string, limit *models.RateLimit) bool {
	if limit == nil {
		return true
	}

	key := fmt.Sprintf("%s%s", l.prefix, source)
	res, err := fixedWindowScript.Run(ctx, l.client, []string{key}, limit.Window.Milliseconds(), limit.MaxCalls).Int()
	if err != nil {
		l.logger.WarnContext(ctx, "redis limiter error, denying call", "source", source, "error", err)
		return false
	}
	return res == 1
}

func (l *Redis) Close() error {
	return l.client.Close()
}
