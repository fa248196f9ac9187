// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/taibuivan/whiphelmets/internal/platform/constants"
	"github.com/taibuivan/whiphelmets/internal/platform/ctxutil"
)

// # Rate Limiting

// Limiter decides whether one more request for key fits in its budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects requests with 429 once the client IP exhausts its budget.
// Keys are namespaced by scope so the login limiter and the global limiter
// keep separate buckets. Limiter errors fail open.
func RateLimit(limiter Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			key := scope + ":" + RealIP(request)

			allowed, err := limiter.Allow(request.Context(), key)
			if err != nil {
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "rate_limit_backend_error",
					slog.String("scope", scope),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(writer, request)
				return
			}

			if !allowed {
				writer.Header().Set("Retry-After", "1")
				writeError(writer, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # In-Memory Backend

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory. Suitable
// for a single instance only; use [RedisLimiter] behind a load balancer.
type MemoryLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateLimitClient
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter refilling rps tokens per second up to burst.
func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		clients: make(map[string]*rateLimitClient),
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     constants.RateLimitClientTTL,
		now:     time.Now,
	}
}

// Allow consumes one token from key's bucket.
func (limiter *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.now()
	clientInfo, found := limiter.clients[key]

	// Initialize a new bucket if this is a fresh key
	if !found {
		clientInfo = &rateLimitClient{limiter: rate.NewLimiter(limiter.limit, limiter.burst)}
		limiter.clients[key] = clientInfo
	}

	clientInfo.lastSeen = now
	return clientInfo.limiter.AllowN(now, 1), nil
}

// Prune drops buckets idle for longer than the client TTL. Returns the
// number of removed entries.
func (limiter *MemoryLimiter) Prune() int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	removed := 0
	cutoff := limiter.now().Add(-limiter.ttl)
	for key, clientInfo := range limiter.clients {
		if clientInfo.lastSeen.Before(cutoff) {
			delete(limiter.clients, key)
			removed++
		}
	}
	return removed
}

// Run prunes idle buckets periodically until ctx is cancelled.
func (limiter *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.Prune()
		case <-ctx.Done():
			return
		}
	}
}

// Len returns the number of tracked keys.
func (limiter *MemoryLimiter) Len() int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	return len(limiter.clients)
}

// # Redis Backend

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1] bucket, ARGV: now_ms, capacity, refill_per_sec, ttl_seconds.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_per_sec = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(state[1])
local last_ms = tonumber(state[2])

if tokens == nil or last_ms == nil then
	tokens = capacity
	last_ms = now_ms
end

local elapsed = math.max(0, now_ms - last_ms)
tokens = math.min(capacity, tokens + (elapsed / 1000.0) * refill_per_sec)

local allowed = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_ms', now_ms)
redis.call('EXPIRE', key, ttl_seconds)
return allowed
`)

// RedisLimiter shares token buckets between instances through Redis.
type RedisLimiter struct {
	client   *redis.Client
	prefix   string
	capacity int
	refill   float64
	ttl      time.Duration
}

// NewRedisLimiter creates a shared limiter refilling rps tokens per second up to burst.
func NewRedisLimiter(client *redis.Client, rps float64, burst int) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		prefix:   constants.RedisPrefixRateLimit,
		capacity: burst,
		refill:   rps,
		ttl:      constants.RateLimitClientTTL,
	}
}

// Allow runs the token bucket script for key.
func (limiter *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	result, err := tokenBucketScript.Run(ctx, limiter.client,
		[]string{limiter.prefix + key},
		time.Now().UnixMilli(),
		limiter.capacity,
		limiter.refill,
		int64(limiter.ttl/time.Second),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("middleware: rate limit script failed: %w", err)
	}
	return result == 1, nil
}
