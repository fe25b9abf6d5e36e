package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/pkg/utils"
)

// RateLimitStore backs the rate limiter with distributed counters.
// *database.RedisDB satisfies it.
type RateLimitStore interface {
	IncrementRateLimit(ctx context.Context, group, clientID string, window time.Duration) (int64, error)
}

// RateLimiter implements distributed rate limiting using Redis
// counters, so the limit holds across multiple API instances. Requests
// are counted per client IP within a fixed window; endpoint groups get
// independent counters, which lets login endpoints run a much stricter
// budget than the catalog.
//
// On limit exceeded the client gets 429 with a Retry-After header.
// On Redis errors the request is allowed through: a degraded limiter
// must not take down login for everyone.
type RateLimiter struct {
	store       RateLimitStore
	maxRequests int
	window      time.Duration
}

// NewRateLimiter creates a rate limiter allowing maxRequests per
// window per client IP.
//
// Example:
//
//	limiter := middleware.NewRateLimiter(redisDB, 60, time.Minute)
//	r.With(limiter.Limit("auth")).Post("/api/auth/login", authHandler.Login)
func NewRateLimiter(store RateLimitStore, maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:       store,
		maxRequests: maxRequests,
		window:      window,
	}
}

// Limit creates middleware applying this limiter to an endpoint group.
// Every response carries X-RateLimit-Limit and X-RateLimit-Remaining.
func (rl *RateLimiter) Limit(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ExtractClientIP(r)

			count, err := rl.store.IncrementRateLimit(r.Context(), group, ip, rl.window)
			if err != nil {
				log.Error().Err(err).Str("ip", ip).Msg("Failed to check rate limit")
				// Continue on error to avoid blocking legitimate requests
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(rl.maxRequests) {
				log.Warn().
					Str("ip", ip).
					Str("group", group).
					Int64("count", count).
					Msg("Rate limit exceeded")

				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.maxRequests))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))

				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			remaining := rl.maxRequests - int(count)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.maxRequests))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

			next.ServeHTTP(w, r)
		})
	}
}
