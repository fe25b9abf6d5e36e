package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/promptmarket/api/internal/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeRateLimitStore struct {
	counts map[string]int64
	err    error
}

func (f *fakeRateLimitStore) IncrementRateLimit(_ context.Context, group, clientID string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	key := group + ":" + clientID
	f.counts[key]++
	return f.counts[key], nil
}

func TestRateLimiter(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows requests under the limit", func(t *testing.T) {
		limiter := NewRateLimiter(&fakeRateLimitStore{}, 3, time.Minute)
		handler := limiter.Limit("auth")(okHandler)

		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("answers 429 with Retry-After over the limit", func(t *testing.T) {
		limiter := NewRateLimiter(&fakeRateLimitStore{}, 2, time.Minute)
		handler := limiter.Limit("auth")(okHandler)

		var rec *httptest.ResponseRecorder
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
		}

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	})

	t.Run("groups count independently", func(t *testing.T) {
		store := &fakeRateLimitStore{}
		limiter := NewRateLimiter(store, 1, time.Minute)

		authHandler := limiter.Limit("auth")(okHandler)
		apiHandler := limiter.Limit("api")(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		rec := httptest.NewRecorder()
		authHandler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		// The auth budget is spent, the api budget is not
		rec = httptest.NewRecorder()
		authHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		rec = httptest.NewRecorder()
		apiHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("fails open on store errors", func(t *testing.T) {
		limiter := NewRateLimiter(&fakeRateLimitStore{err: errors.New("redis down")}, 1, time.Minute)
		handler := limiter.Limit("auth")(okHandler)

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("counts against the Redis-backed store", func(t *testing.T) {
		mr, cleanup := testutil.SetupMiniRedis(t)
		defer cleanup()
		redisDB := testutil.NewTestRedisDB(t, mr)
		defer redisDB.Close()

		limiter := NewRateLimiter(redisDB, 2, time.Minute)
		handler := limiter.Limit("auth")(okHandler)

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

		// A new window resets the counter
		mr.FastForward(2 * time.Minute)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
