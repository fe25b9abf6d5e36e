package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/promptmarket/api/internal/testutil"
	"github.com/promptmarket/api/pkg/cache"
	"github.com/promptmarket/api/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOAuthService(t *testing.T) (*OAuthService, func()) {
	t.Helper()

	mr, cleanup := testutil.SetupMiniRedis(t)
	client := testutil.NewTestRedisClient(t, mr)

	cfg := &config.OAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:3001/api/auth/google/callback",
	}

	service := NewOAuthService(cfg, []byte("test-session-secret-at-least-32-bytes"), nil, cache.NewCache(client))

	return service, func() {
		cleanup()
		client.Close()
	}
}

func TestGenerateState(t *testing.T) {
	service, cleanup := setupOAuthService(t)
	defer cleanup()

	t.Run("produces a signed token", func(t *testing.T) {
		state, err := service.GenerateState()
		require.NoError(t, err)
		assert.NotEmpty(t, state)
		// header.claims.signature
		assert.Len(t, strings.Split(state, "."), 3)
	})

	t.Run("each state carries a fresh nonce", func(t *testing.T) {
		state1, err := service.GenerateState()
		require.NoError(t, err)
		state2, err := service.GenerateState()
		require.NoError(t, err)

		assert.NotEqual(t, state1, state2)
	})
}

func TestVerifyState(t *testing.T) {
	service, cleanup := setupOAuthService(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("accepts a freshly generated state", func(t *testing.T) {
		state, err := service.GenerateState()
		require.NoError(t, err)

		assert.NoError(t, service.VerifyState(ctx, state))
	})

	t.Run("rejects a replayed state", func(t *testing.T) {
		state, err := service.GenerateState()
		require.NoError(t, err)

		require.NoError(t, service.VerifyState(ctx, state))
		assert.ErrorIs(t, service.VerifyState(ctx, state), ErrInvalidOAuthState)
	})

	t.Run("rejects an empty state", func(t *testing.T) {
		assert.ErrorIs(t, service.VerifyState(ctx, ""), ErrInvalidOAuthState)
	})

	t.Run("rejects a tampered token", func(t *testing.T) {
		state, err := service.GenerateState()
		require.NoError(t, err)

		tampered := state[:len(state)-2] + "xx"
		assert.ErrorIs(t, service.VerifyState(ctx, tampered), ErrInvalidOAuthState)
	})

	t.Run("rejects a token signed with a different secret", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("attacker-secret"))
		require.NoError(t, err)

		assert.ErrorIs(t, service.VerifyState(ctx, forged), ErrInvalidOAuthState)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-50 * time.Minute)),
		}
		expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-session-secret-at-least-32-bytes"))
		require.NoError(t, err)

		assert.ErrorIs(t, service.VerifyState(ctx, expired), ErrInvalidOAuthState)
	})
}

func TestGetAuthURL(t *testing.T) {
	service, cleanup := setupOAuthService(t)
	defer cleanup()

	url := service.GetAuthURL("the-state")
	assert.Contains(t, url, "accounts.google.com")
	assert.Contains(t, url, "state=the-state")
	assert.Contains(t, url, "client_id=test-client-id")
	assert.Contains(t, url, "access_type=offline")
}
