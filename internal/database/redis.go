package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/pkg/cache"
	"github.com/promptmarket/api/pkg/config"
	"github.com/promptmarket/api/pkg/utils"
)

// RedisDB wraps a Redis client for session storage, caching, and rate
// limiting. Session records are the authoritative source of request
// authentication: destroying a key here logs the client out regardless
// of what cookie it still holds.
//
// Key layout:
//   - "session:{sessionID}"       JSON-encoded session record with TTL
//   - "user_sessions:{userID}"    set of the user's active session IDs
//   - "ratelimit:{group}:{ip}"    fixed-window request counters
type RedisDB struct {
	client *redis.Client // Underlying Redis client with connection pooling
}

// NewRedisDB creates a new Redis connection with automatic retry.
// Implements exponential backoff retry logic similar to the PostgreSQL
// connection, so a Redis container that is still starting does not
// fail the whole deployment.
//
// Example:
//
//	redisDB, err := database.NewRedisDB(&cfg.Redis)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Redis connection failed")
//	}
//	defer redisDB.Close()
func NewRedisDB(cfg *config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Verify connection with retry
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryConfig := utils.StoreRetryConfig()

	var lastErr error
	err := utils.Retry(ctx, retryConfig, func() error {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			lastErr = err
			log.Warn().Err(err).Msg("Failed to ping Redis, retrying...")
			return err
		}
		return nil
	})

	if err != nil {
		client.Close()
		if lastErr != nil {
			return nil, fmt.Errorf("failed to connect to Redis after retries: %w", lastErr)
		}
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Msg("Successfully connected to Redis")

	return &RedisDB{client: client}, nil
}

// NewRedisDBFromClient wraps an existing Redis client. Used by tests to
// back the store with miniredis.
func NewRedisDBFromClient(client *redis.Client) *RedisDB {
	return &RedisDB{client: client}
}

// Close closes the Redis connection and releases all resources.
func (r *RedisDB) Close() error {
	return r.client.Close()
}

// Client returns the underlying Redis client for advanced operations.
func (r *RedisDB) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is alive and responsive.
// Used by the readiness endpoint to verify Redis availability.
func (r *RedisDB) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SetSession stores a session record and indexes it under the owning
// user. The record expires with the given TTL; the per-user index set
// has its expiry pushed out to at least the same horizon so it can
// never outlive all of its members by less than a full session.
func (r *RedisDB) SetSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	sessionKey := cache.SessionKey(session.ID)
	indexKey := cache.UserSessionsKey(session.User.ID)

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey, data, ttl)
	pipe.SAdd(ctx, indexKey, session.ID)
	pipe.Expire(ctx, indexKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

// GetSession retrieves a session record by its opaque ID.
// Returns ErrNotFound when the session does not exist or has expired;
// the two cases are indistinguishable on purpose.
func (r *RedisDB) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := r.client.Get(ctx, cache.SessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// SessionTTL returns the remaining lifetime of a session key.
// Returns ErrNotFound when the session does not exist.
func (r *RedisDB) SessionTTL(ctx context.Context, sessionID string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, cache.SessionKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get session ttl: %w", err)
	}
	if ttl < 0 {
		return 0, ErrNotFound
	}
	return ttl, nil
}

// UpdateSession rewrites an existing session record while preserving
// its remaining TTL. Used when a profile edit refreshes the user
// snapshot carried by live sessions; the rewrite must not extend the
// session's life.
func (r *RedisDB) UpdateSession(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// KEEPTTL leaves the existing expiry untouched
	err = r.client.Set(ctx, cache.SessionKey(session.ID), data, redis.KeepTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// DeleteSession removes a session record and its index entry.
// Deleting a session that does not exist is not an error, which makes
// repeated logouts with a stale cookie harmless.
func (r *RedisDB) DeleteSession(ctx context.Context, sessionID string, userID uuid.UUID) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, cache.SessionKey(sessionID))
	if userID != uuid.Nil {
		pipe.SRem(ctx, cache.UserSessionsKey(userID), sessionID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// ListUserSessionIDs returns the IDs of all sessions indexed for a
// user. Members whose session key has since expired may still appear;
// callers that dereference them get ErrNotFound and should prune.
func (r *RedisDB) ListUserSessionIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ids, err := r.client.SMembers(ctx, cache.UserSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	return ids, nil
}

// PruneUserSession removes a stale session ID from a user's index set.
func (r *RedisDB) PruneUserSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	err := r.client.SRem(ctx, cache.UserSessionsKey(userID), sessionID).Err()
	if err != nil {
		return fmt.Errorf("failed to prune session index: %w", err)
	}
	return nil
}

// IncrementRateLimit increments the rate limit counter for a client
// within an endpoint group. Implements a fixed window: the first
// request creates the counter with the window as TTL, later requests
// increment it until the window expires.
//
// Returns the current count including this request.
func (r *RedisDB) IncrementRateLimit(ctx context.Context, group, clientID string, window time.Duration) (int64, error) {
	key := cache.RateLimitKey(group, clientID)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count, nil
}
