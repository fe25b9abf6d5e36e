package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/promptmarket/api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessionService(t *testing.T) (*SessionService, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, cleanup := testutil.SetupMiniRedis(t)
	redisDB := testutil.NewTestRedisDB(t, mr)

	sessionService := NewSessionService(redisDB, 24*time.Hour)

	return sessionService, mr, func() {
		cleanup()
		redisDB.Close()
	}
}

func TestCreateSession(t *testing.T) {
	sessionService, _, cleanup := setupSessionService(t)
	defer cleanup()

	ctx := context.Background()
	user := testutil.TestUser()

	t.Run("creates session with opaque ID", func(t *testing.T) {
		session, err := sessionService.CreateSession(
			ctx,
			user,
			"Chrome 120 · Windows 11 · Desktop",
			testutil.IPAddresses.Public,
		)

		require.NoError(t, err)
		assert.NotEmpty(t, session.ID)
		// 32 bytes base64url-encoded without padding
		assert.Len(t, session.ID, 43)
	})

	t.Run("carries a snapshot of the user", func(t *testing.T) {
		session, err := sessionService.CreateSession(ctx, user, "Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		assert.Equal(t, user.ID, session.User.ID)
		assert.Equal(t, user.Email, session.User.Email)
		assert.Equal(t, user.Name, session.User.Name)
		assert.Equal(t, user.Role, session.User.Role)
	})

	t.Run("stores session data in Redis", func(t *testing.T) {
		deviceInfo := "Safari 17 · macOS 14 · Desktop"
		ipAddress := testutil.IPAddresses.Public

		created, err := sessionService.CreateSession(ctx, user, deviceInfo, ipAddress)
		require.NoError(t, err)

		session, err := sessionService.GetSession(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, session.ID)
		assert.Equal(t, deviceInfo, session.DeviceInfo)
		assert.Equal(t, ipAddress, session.IPAddress)
		assert.False(t, session.CreatedAt.IsZero())
		assert.False(t, session.ExpiresAt.IsZero())
	})

	t.Run("creates multiple unique sessions for same user", func(t *testing.T) {
		session1, err := sessionService.CreateSession(ctx, user, "Device 1", testutil.IPAddresses.Public)
		require.NoError(t, err)

		session2, err := sessionService.CreateSession(ctx, user, "Device 2", testutil.IPAddresses.Private)
		require.NoError(t, err)

		assert.NotEqual(t, session1.ID, session2.ID)

		// Both sessions resolve independently
		_, err = sessionService.GetSession(ctx, session1.ID)
		assert.NoError(t, err)
		_, err = sessionService.GetSession(ctx, session2.ID)
		assert.NoError(t, err)
	})
}

func TestGetSession(t *testing.T) {
	sessionService, mr, cleanup := setupSessionService(t)
	defer cleanup()

	ctx := context.Background()
	user := testutil.TestUser()

	t.Run("returns ErrNotAuthenticated for empty ID", func(t *testing.T) {
		_, err := sessionService.GetSession(ctx, "")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("returns ErrNotAuthenticated for unknown ID", func(t *testing.T) {
		_, err := sessionService.GetSession(ctx, "bm8tc3VjaC1zZXNzaW9uLWlkLWF0LWFsbC1oZXJlISE")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("returns ErrNotAuthenticated after expiry", func(t *testing.T) {
		created, err := sessionService.CreateSession(ctx, user, "Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		mr.FastForward(25 * time.Hour)

		_, err = sessionService.GetSession(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("reading does not extend the TTL", func(t *testing.T) {
		created, err := sessionService.CreateSession(ctx, user, "Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		mr.FastForward(23 * time.Hour)

		// Still alive with an hour left; the probe must not reset the clock.
		_, err = sessionService.GetSession(ctx, created.ID)
		require.NoError(t, err)

		mr.FastForward(2 * time.Hour)

		_, err = sessionService.GetSession(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestDestroySession(t *testing.T) {
	sessionService, _, cleanup := setupSessionService(t)
	defer cleanup()

	ctx := context.Background()
	user := testutil.TestUser()

	t.Run("removes the session", func(t *testing.T) {
		created, err := sessionService.CreateSession(ctx, user, "Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		err = sessionService.DestroySession(ctx, created.ID)
		require.NoError(t, err)

		_, err = sessionService.GetSession(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("is idempotent", func(t *testing.T) {
		created, err := sessionService.CreateSession(ctx, user, "Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		require.NoError(t, sessionService.DestroySession(ctx, created.ID))
		assert.NoError(t, sessionService.DestroySession(ctx, created.ID))
	})

	t.Run("succeeds for an unknown ID", func(t *testing.T) {
		assert.NoError(t, sessionService.DestroySession(ctx, "bmV2ZXItZXhpc3RlZC1zZXNzaW9uLWlkLXZhbHVlISE"))
	})

	t.Run("succeeds for an empty ID", func(t *testing.T) {
		assert.NoError(t, sessionService.DestroySession(ctx, ""))
	})

	t.Run("does not affect other sessions", func(t *testing.T) {
		session1, err := sessionService.CreateSession(ctx, user, "Device 1", testutil.IPAddresses.Public)
		require.NoError(t, err)
		session2, err := sessionService.CreateSession(ctx, user, "Device 2", testutil.IPAddresses.Private)
		require.NoError(t, err)

		require.NoError(t, sessionService.DestroySession(ctx, session1.ID))

		_, err = sessionService.GetSession(ctx, session2.ID)
		assert.NoError(t, err)
	})
}

func TestDestroyAllForUser(t *testing.T) {
	sessionService, _, cleanup := setupSessionService(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("removes all user sessions", func(t *testing.T) {
		user := testutil.TestUser()

		var ids []string
		for i := 0; i < 3; i++ {
			session, err := sessionService.CreateSession(ctx, user, "Device", testutil.IPAddresses.Public)
			require.NoError(t, err)
			ids = append(ids, session.ID)
		}

		require.NoError(t, sessionService.DestroyAllForUser(ctx, user.ID))

		for _, id := range ids {
			_, err := sessionService.GetSession(ctx, id)
			assert.ErrorIs(t, err, ErrNotAuthenticated)
		}
	})

	t.Run("does not affect other users", func(t *testing.T) {
		user1 := testutil.TestUser()
		user2 := testutil.TestUserWithEmail("other@example.com")

		_, err := sessionService.CreateSession(ctx, user1, "User1 Device", testutil.IPAddresses.Public)
		require.NoError(t, err)
		session2, err := sessionService.CreateSession(ctx, user2, "User2 Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		require.NoError(t, sessionService.DestroyAllForUser(ctx, user1.ID))

		_, err = sessionService.GetSession(ctx, session2.ID)
		assert.NoError(t, err)
	})
}

func TestRefreshSnapshots(t *testing.T) {
	sessionService, mr, cleanup := setupSessionService(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("updates the snapshot in every live session", func(t *testing.T) {
		user := testutil.TestUser()

		session1, err := sessionService.CreateSession(ctx, user, "Device 1", testutil.IPAddresses.Public)
		require.NoError(t, err)
		session2, err := sessionService.CreateSession(ctx, user, "Device 2", testutil.IPAddresses.Private)
		require.NoError(t, err)

		user.Name = "Renamed User"
		user.Bio = testutil.StringPtr("New bio")
		require.NoError(t, sessionService.RefreshSnapshots(ctx, user))

		for _, id := range []string{session1.ID, session2.ID} {
			got, err := sessionService.GetSession(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "Renamed User", got.User.Name)
			require.NotNil(t, got.User.Bio)
			assert.Equal(t, "New bio", *got.User.Bio)
		}
	})

	t.Run("preserves the remaining TTL", func(t *testing.T) {
		user := testutil.TestUserWithEmail("ttl@example.com")

		session, err := sessionService.CreateSession(ctx, user, "Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		mr.FastForward(20 * time.Hour)

		user.Name = "Edited"
		require.NoError(t, sessionService.RefreshSnapshots(ctx, user))

		// 4 hours of the original 24 remain; the refresh must not add more.
		mr.FastForward(5 * time.Hour)

		_, err = sessionService.GetSession(ctx, session.ID)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("tolerates expired sessions in the index", func(t *testing.T) {
		user := testutil.TestUserWithEmail("stale@example.com")

		_, err := sessionService.CreateSession(ctx, user, "Old Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		mr.FastForward(25 * time.Hour)

		live, err := sessionService.CreateSession(ctx, user, "New Device", testutil.IPAddresses.Public)
		require.NoError(t, err)

		user.Name = "Edited"
		require.NoError(t, sessionService.RefreshSnapshots(ctx, user))

		got, err := sessionService.GetSession(ctx, live.ID)
		require.NoError(t, err)
		assert.Equal(t, "Edited", got.User.Name)
	})
}

func TestExtractDeviceInfo(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{
			name:      "Chrome on Windows",
			userAgent: testutil.UserAgents.Chrome,
			expected:  "Chrome",
		},
		{
			name:      "Safari on macOS",
			userAgent: testutil.UserAgents.Safari,
			expected:  "Safari",
		},
		{
			name:      "Firefox on Windows",
			userAgent: testutil.UserAgents.Firefox,
			expected:  "Firefox",
		},
		{
			name:      "Mobile Chrome",
			userAgent: testutil.UserAgents.MobileChrome,
			expected:  "Mobile",
		},
		{
			name:      "Mobile Safari (iPhone)",
			userAgent: testutil.UserAgents.MobileSafari,
			expected:  "Mobile",
		},
		{
			name:      "Empty user agent",
			userAgent: "",
			expected:  "Unknown Device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deviceInfo := ExtractDeviceInfo(tt.userAgent)
			assert.Contains(t, deviceInfo, tt.expected)
		})
	}
}

func TestSessionServiceConcurrency(t *testing.T) {
	sessionService, _, cleanup := setupSessionService(t)
	defer cleanup()

	ctx := context.Background()
	user := testutil.TestUser()

	t.Run("concurrent session creation", func(t *testing.T) {
		const goroutines = 10
		done := make(chan string, goroutines)
		errs := make(chan error, goroutines)

		for i := 0; i < goroutines; i++ {
			go func() {
				session, err := sessionService.CreateSession(
					ctx,
					user,
					"Device",
					testutil.IPAddresses.Public,
				)
				if err != nil {
					errs <- err
					return
				}
				done <- session.ID
			}()
		}

		sessionIDs := make(map[string]bool)
		for i := 0; i < goroutines; i++ {
			select {
			case sessionID := <-done:
				sessionIDs[sessionID] = true
			case err := <-errs:
				t.Fatalf("Concurrent session creation failed: %v", err)
			case <-time.After(5 * time.Second):
				t.Fatal("Timeout waiting for concurrent operations")
			}
		}

		// All session IDs should be unique
		assert.Len(t, sessionIDs, goroutines)
	})
}
