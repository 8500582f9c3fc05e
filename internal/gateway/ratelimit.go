package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limits caps sends per window. A zero value disables that window.
type Limits struct {
	PerSecond int
	PerMinute int
	PerHour   int
	PerDay    int
}

// Lua script for atomic multi-window rate limit check.
// All windows are checked before any counter is incremented. A negative
// limit means the window is unlimited.
const multiWindowLuaScript = `
for i = 1, #KEYS do
    local limit = tonumber(ARGV[i])
    if limit >= 0 then
        local current = tonumber(redis.call("GET", KEYS[i]) or "0")
        if current + 1 > limit then
            return {0, i}
        end
    end
end

for i = 1, #KEYS do
    local ttl = tonumber(ARGV[#KEYS + i])
    local n = redis.call("INCR", KEYS[i])
    if n == 1 then
        redis.call("EXPIRE", KEYS[i], ttl)
    end
end

return {1, 0}
`

var multiWindowScript = redis.NewScript(multiWindowLuaScript)

// RedisLimiter is a fixed-window rate limiter shared by every worker
// process through Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limits Limits
	now    func() time.Time
}

// NewRedisLimiter creates a limiter whose keys live under prefix.
func NewRedisLimiter(client *redis.Client, prefix string, limits Limits) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit:gateway"
	}
	return &RedisLimiter{client: client, prefix: prefix, limits: limits, now: time.Now}
}

func bound(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// Allow consumes one send slot if every window has room.
func (l *RedisLimiter) Allow(ctx context.Context) (bool, error) {
	now := l.now().UTC()
	keys := []string{
		fmt.Sprintf("%s:sec:%d", l.prefix, now.Unix()),
		fmt.Sprintf("%s:min:%d", l.prefix, now.Unix()/60),
		fmt.Sprintf("%s:hour:%d", l.prefix, now.Unix()/3600),
		fmt.Sprintf("%s:day:%s", l.prefix, now.Format("2006-01-02")),
	}

	result, err := multiWindowScript.Run(ctx, l.client, keys,
		bound(l.limits.PerSecond),
		bound(l.limits.PerMinute),
		bound(l.limits.PerHour),
		bound(l.limits.PerDay),
		2,     // second TTL
		120,   // minute TTL
		7200,  // hour TTL
		90000, // day TTL (25 hours)
	).Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed, _ := result[0].(int64)
	return allowed == 1, nil
}
