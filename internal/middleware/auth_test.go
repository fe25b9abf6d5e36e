package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/internal/services"
	"github.com/promptmarket/api/internal/testutil"
	"github.com/promptmarket/api/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionResolver struct {
	sessions map[string]*models.Session
	err      error
}

func (f *fakeSessionResolver) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	if session, ok := f.sessions[sessionID]; ok {
		return session, nil
	}
	return nil, services.ErrNotAuthenticated
}

func TestSessionAuth(t *testing.T) {
	user := testutil.TestUser()
	session := testutil.TestSession(user)

	resolver := &fakeSessionResolver{
		sessions: map[string]*models.Session{session.ID: session},
	}

	var captured *models.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = GetSession(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := SessionAuth(resolver)(next)

	t.Run("passes a valid cookie through with the session in context", func(t *testing.T) {
		captured = nil

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		testutil.SetCookie(req, utils.SessionCookieName, session.ID)
		resp := httptest.NewRecorder()

		handler.ServeHTTP(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusOK)
		require.NotNil(t, captured)
		assert.Equal(t, session.ID, captured.ID)
		assert.Equal(t, user.ID, captured.User.ID)
	})

	t.Run("answers 401 without a cookie", func(t *testing.T) {
		captured = nil

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		resp := httptest.NewRecorder()

		handler.ServeHTTP(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
		assert.Nil(t, captured)
	})

	t.Run("answers 401 for an unknown session", func(t *testing.T) {
		captured = nil

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		testutil.SetCookie(req, utils.SessionCookieName, "expired-or-bogus")
		resp := httptest.NewRecorder()

		handler.ServeHTTP(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
		assert.Nil(t, captured)
	})

	t.Run("answers 500 when the store is unreachable", func(t *testing.T) {
		broken := &fakeSessionResolver{err: services.ErrSessionStoreUnavailable}
		brokenHandler := SessionAuth(broken)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		testutil.SetCookie(req, utils.SessionCookieName, session.ID)
		resp := httptest.NewRecorder()

		brokenHandler.ServeHTTP(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusInternalServerError)
	})
}

func TestGetUser(t *testing.T) {
	t.Run("returns the snapshot from the context", func(t *testing.T) {
		user := testutil.TestUser()
		session := testutil.TestSession(user)

		ctx := WithSession(context.Background(), session)

		snapshot, ok := GetUser(ctx)
		require.True(t, ok)
		assert.Equal(t, user.ID, snapshot.ID)
		assert.Equal(t, user.Email, snapshot.Email)
	})

	t.Run("reports absence on a bare context", func(t *testing.T) {
		_, ok := GetUser(context.Background())
		assert.False(t, ok)
	})
}
