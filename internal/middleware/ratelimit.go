package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"runway-live-backend/internal/config"
)

// NewTokenBucket returns a middleware that rate-limits requests with a
// redis-backed token bucket, keyed per authenticated subject (falling back
// to the client IP). The bucket state lives in redis so every instance of
// the service shares one budget per guest. A live show concentrates wish
// traffic into seconds-long bursts when a popular look comes up; this
// keeps a single guest from flooding the queue endpoints.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) func(http.Handler) http.Handler {
	if !cfg.Enabled || rdb == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	limiterScript := redis.NewScript(`
		local key = KEYS[1]
		local now_ms = tonumber(ARGV[1])
		local capacity = tonumber(ARGV[2])
		local refill_tokens = tonumber(ARGV[3])
		local interval_ms = tonumber(ARGV[4])
		local ttl_seconds = tonumber(ARGV[5])

		local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
		local tokens = tonumber(state[1])
		local last_refill = tonumber(state[2])

		if tokens == nil or last_refill == nil then
			tokens = capacity
			last_refill = now_ms
		end

		if interval_ms > 0 and refill_tokens > 0 then
			local elapsed = math.max(0, now_ms - last_refill)
			local intervals = math.floor(elapsed / interval_ms)
			if intervals > 0 then
				tokens = math.min(capacity, tokens + (intervals * refill_tokens))
				last_refill = last_refill + (intervals * interval_ms)
			end
		end

		local allowed = 0
		local retry_after_ms = 0
		if tokens > 0 then
			allowed = 1
			tokens = tokens - 1
		else
			local until_next = interval_ms - (now_ms - last_refill)
			if until_next < 0 then until_next = 0 end
			retry_after_ms = until_next
		end

		redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
		redis.call('EXPIRE', key, ttl_seconds)

		return { allowed, tokens, retry_after_ms }
	`)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + rateKey(r)
			now := time.Now()

			args := []interface{}{
				now.UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			vals, err := limiterScript.Run(r.Context(), rdb, []string{key}, args...).Result()
			if err != nil {
				// Fail open: a limiter outage must not block the show.
				log.Error().Err(err).Msg("Rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			result, ok := vals.([]interface{})
			if !ok || len(result) < 3 {
				next.ServeHTTP(w, r)
				return
			}
			allowed, _ := result[0].(int64)
			if allowed == 1 {
				next.ServeHTTP(w, r)
				return
			}

			retryAfterMs, _ := result[2].(int64)
			retryAfter := (retryAfterMs + 999) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			respondError(w, "Too many requests, slow down", http.StatusTooManyRequests)
		})
	}
}

func rateKey(r *http.Request) string {
	if subject := GetSubject(r.Context()); subject != "" {
		return subject
	}
	// RealIP middleware has already normalized RemoteAddr.
	return r.RemoteAddr
}
