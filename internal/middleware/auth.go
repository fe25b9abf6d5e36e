package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/internal/services"
	"github.com/promptmarket/api/pkg/utils"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionResolver resolves a session cookie value to a session record.
// *services.SessionService satisfies it.
type SessionResolver interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
}

// SessionAuth authenticates requests by their session cookie. The
// cookie value is resolved against the session store; a missing,
// unknown, or expired session answers 401 without distinguishing the
// cases. On success the session record is placed in the request
// context for GetSession/GetUser.
//
// The store lookup is the only authentication step. There is nothing
// to verify client-side: the cookie is an opaque capability, valid
// exactly as long as its server-side record exists.
//
// Usage:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(middleware.SessionAuth(sessionService))
//	    r.Get("/api/auth/session", authHandler.Session)
//	})
func SessionAuth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(utils.SessionCookieName)
			if err != nil {
				utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
				return
			}

			session, err := sessions.GetSession(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, services.ErrNotAuthenticated) {
					utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
					return
				}
				utils.RespondWithError(w, r, http.StatusInternalServerError, "Session store unavailable")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// WithSession attaches a session to the context. Handler tests use it
// to simulate a request that passed SessionAuth.
func WithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// GetSession extracts the authenticated session from the request
// context. Returns false when the request did not pass SessionAuth.
func GetSession(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*models.Session)
	return session, ok
}

// GetUser extracts the authenticated user's snapshot from the request
// context.
func GetUser(ctx context.Context) (models.UserSnapshot, bool) {
	session, ok := GetSession(ctx)
	if !ok {
		return models.UserSnapshot{}, false
	}
	return session.User, true
}
