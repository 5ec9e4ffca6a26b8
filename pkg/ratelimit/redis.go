package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the counter and starts the window on the first hit.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Redis shares fixed window counters between instances.
type Redis struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(client redis.Scripter, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: "ratelimit:",
		limit:  limit,
		window: window,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	n, err := incrScript.Run(ctx, r.client, []string{r.prefix + key}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	return n <= int64(r.limit), nil
}
