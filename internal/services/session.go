package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/internal/database"
	"github.com/promptmarket/api/internal/models"
)

// sessionIDBytes is the entropy of a session identifier. 32 bytes of
// crypto/rand gives 256 bits, far beyond brute-force reach, and
// encodes to a 43-character base64url string.
const sessionIDBytes = 32

// SessionStore defines the interface for session storage operations.
// This interface abstracts Redis operations for session management,
// enabling testing and dependency injection. *database.RedisDB
// satisfies it.
type SessionStore interface {
	SetSession(ctx context.Context, session *models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, sessionID string, userID uuid.UUID) error
	ListUserSessionIDs(ctx context.Context, userID uuid.UUID) ([]string, error)
	PruneUserSession(ctx context.Context, userID uuid.UUID, sessionID string) error
}

// SessionService manages the lifecycle of server-side sessions: an
// opaque random ID handed to the client as a cookie, mapped in Redis
// to a snapshot of the authenticated user.
//
// The stored record is the sole authority on who is logged in.
// Destroying it logs the client out no matter what cookie the browser
// still holds, and expiry is enforced by the store's TTL rather than
// by anything the client presents.
type SessionService struct {
	store SessionStore
	ttl   time.Duration
}

// NewSessionService creates a session service with the given session
// lifetime.
func NewSessionService(store SessionStore, ttl time.Duration) *SessionService {
	return &SessionService{
		store: store,
		ttl:   ttl,
	}
}

// TTL returns the configured session lifetime. Handlers use it for the
// cookie Max-Age so cookie and record expire together.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// CreateSession mints a new session for an authenticated user and
// persists it with the configured TTL. The caller passes audit
// metadata captured from the request; it is stored for display, never
// consulted for authorization.
func (s *SessionService) CreateSession(ctx context.Context, user *models.User, deviceInfo, ipAddress string) (*models.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:         id,
		User:       user.Snapshot(),
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	if err := s.store.SetSession(ctx, session, s.ttl); err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to store session")
		return nil, ErrSessionStoreUnavailable
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("device", deviceInfo).
		Msg("Session created")

	return session, nil
}

// GetSession resolves a session ID to its record. An empty, unknown,
// or expired ID yields ErrNotAuthenticated; the three cases are not
// distinguishable by the caller.
//
// Reading a session never extends its TTL. A session lives exactly as
// long as it was granted at login, no matter how active the client is.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		log.Error().Err(err).Msg("Session lookup failed")
		return nil, ErrSessionStoreUnavailable
	}

	return session, nil
}

// DestroySession removes a session. Destroying an absent or already
// destroyed session succeeds, so logout with a stale cookie behaves
// like logout with a live one.
func (s *SessionService) DestroySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	// Fetch first so we can clear the user's index entry too. A miss
	// just means there is no index entry to clear.
	userID := uuid.Nil
	session, err := s.store.GetSession(ctx, sessionID)
	if err == nil {
		userID = session.User.ID
	} else if !errors.Is(err, database.ErrNotFound) {
		log.Error().Err(err).Msg("Session lookup failed during logout")
		return ErrSessionStoreUnavailable
	}

	if err := s.store.DeleteSession(ctx, sessionID, userID); err != nil {
		log.Error().Err(err).Msg("Session delete failed")
		return ErrSessionStoreUnavailable
	}

	return nil
}

// DestroyAllForUser removes every active session belonging to a user.
// Used for account-wide logout.
func (s *SessionService) DestroyAllForUser(ctx context.Context, userID uuid.UUID) error {
	ids, err := s.store.ListUserSessionIDs(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Session list failed")
		return ErrSessionStoreUnavailable
	}

	for _, id := range ids {
		if err := s.store.DeleteSession(ctx, id, userID); err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("Session delete failed")
			return ErrSessionStoreUnavailable
		}
	}

	return nil
}

// RefreshSnapshots rewrites the user snapshot carried by every live
// session of a user after a profile update, so /api/auth/session
// reflects the edit immediately on all devices. Each rewrite preserves
// the session's remaining TTL; refreshing never extends a session.
//
// Index entries whose session has expired are pruned along the way.
func (s *SessionService) RefreshSnapshots(ctx context.Context, user *models.User) error {
	ids, err := s.store.ListUserSessionIDs(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Session list failed")
		return ErrSessionStoreUnavailable
	}

	snapshot := user.Snapshot()
	for _, id := range ids {
		session, err := s.store.GetSession(ctx, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				if perr := s.store.PruneUserSession(ctx, user.ID, id); perr != nil {
					log.Warn().Err(perr).Msg("Failed to prune expired session index entry")
				}
				continue
			}
			log.Error().Err(err).Msg("Session lookup failed during snapshot refresh")
			return ErrSessionStoreUnavailable
		}

		session.User = snapshot
		if err := s.store.UpdateSession(ctx, session); err != nil {
			log.Error().Err(err).Msg("Session update failed during snapshot refresh")
			return ErrSessionStoreUnavailable
		}
	}

	return nil
}

// generateSessionID returns a fresh opaque session identifier:
// 32 bytes from crypto/rand, base64url-encoded without padding.
func generateSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ExtractDeviceInfo extracts human-readable device information from a
// User-Agent header. Parses the User-Agent to identify browser,
// operating system, and device type, formatting it into a friendly
// string for display in session lists.
//
// Example:
//
//	deviceInfo := services.ExtractDeviceInfo(r.UserAgent())
//	// Returns: "Chrome 120.0 · Windows 11 · Desktop"
//	// Or: "Safari 17.0 · iOS 17.1 · Mobile"
func ExtractDeviceInfo(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	var parts []string

	// Browser
	if ua.Name != "" {
		browser := ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
		parts = append(parts, browser)
	}

	// Operating System
	if ua.OS != "" {
		os := ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
		parts = append(parts, os)
	}

	// Device type
	if ua.Mobile {
		parts = append(parts, "Mobile")
	} else if ua.Tablet {
		parts = append(parts, "Tablet")
	} else if ua.Desktop {
		parts = append(parts, "Desktop")
	}

	if len(parts) == 0 {
		// Fallback to truncated user agent
		if len(userAgent) > 100 {
			return userAgent[:100] + "..."
		}
		return userAgent
	}

	return strings.Join(parts, " · ")
}
