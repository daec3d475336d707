package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key pattern:
// - ratelimit:{source}:webhook - fixed window, per-source callback budget

// RateLimitConfig contains configuration for webhook throttling.
type RateLimitConfig struct {
	WebhookLimit  int           // Max callbacks per window per source
	WebhookWindow time.Duration // Callback rate limit window
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		WebhookLimit:  120,
		WebhookWindow: 60 * time.Second,
	}
}

// RateLimiter throttles the public webhook endpoint using Redis.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowWebhook checks whether a callback source may deliver another callback.
func (r *RateLimiter) AllowWebhook(ctx context.Context, source string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:webhook", source)
	return r.checkLimit(ctx, key, r.config.WebhookLimit, r.config.WebhookWindow)
}

// checkLimit runs an atomic increment-and-check via a Lua script.
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	script := goredis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('GET', key)
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		local ttl = redis.call('TTL', key)
		if ttl < 0 then
			ttl = window
		end

		if current < limit then
			redis.call('INCR', key)
			if ttl == window then
				redis.call('EXPIRE', key, window)
			end
			return {1, limit - current - 1, ttl}
		else
			return {0, 0, ttl}
		end
	`)

	result, err := script.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	allowed := resultSlice[0].(int64) == 1
	remaining := int(resultSlice[1].(int64))
	resetIn := time.Duration(resultSlice[2].(int64)) * time.Second

	return &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   resetIn,
		Limit:     limit,
	}, nil
}

// Reset clears the rate limit for a source (admin operation).
func (r *RateLimiter) Reset(ctx context.Context, source string) error {
	return r.client.Del(ctx, fmt.Sprintf("ratelimit:%s:webhook", source)).Err()
}
