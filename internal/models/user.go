// Package models defines the core domain models for the marketplace:
// users, sessions, and products. All models include JSON struct tags for
// serialization, and sensitive fields like password hashes are marked with
// `json:"-"` so they can never leak into API responses.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of a user account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a marketplace account. An account is created either by
// password signup or by a first Google login; at least one of PasswordHash
// and GoogleID is always set (enforced by a CHECK constraint in the store).
//
// Email is stored lowercase and is unique across all users. GoogleID is set
// when the account was created by OAuth or was later linked to a Google
// identity; it maps to at most one user.
type User struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	Email              string     `json:"email" db:"email"`
	PasswordHash       *string    `json:"-" db:"password_hash"`        // nil for OAuth-only accounts
	GoogleID           *string    `json:"-" db:"google_id"`            // nil for password-only accounts
	Role               Role       `json:"role" db:"role"`              // defaults to USER
	Bio                *string    `json:"bio,omitempty" db:"bio"`
	Avatar             *string    `json:"avatar,omitempty" db:"avatar"`
	EmailNotifications bool       `json:"email_notifications" db:"email_notifications"`
	PushNotifications  bool       `json:"push_notifications" db:"push_notifications"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
	LastLogin          *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// Snapshot builds the denormalized view of the user that is stored alongside
// a session and returned from /api/auth/session. Keeping a snapshot avoids a
// database read on every authenticated request; the trade-off is that the
// snapshot can go stale after a profile edit, which is why profile updates
// rewrite the snapshots of the user's live sessions.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		Bio:                u.Bio,
		Avatar:             u.Avatar,
		EmailNotifications: u.EmailNotifications,
		PushNotifications:  u.PushNotifications,
	}
}

// UserSnapshot is the subset of user fields a session carries. It contains
// display attributes only, never credentials.
//
// JSON example:
//
//	{
//	  "id": "550e8400-e29b-41d4-a716-446655440000",
//	  "name": "Ann",
//	  "email": "ann@example.com",
//	  "role": "USER",
//	  "email_notifications": true,
//	  "push_notifications": false
//	}
type UserSnapshot struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Role               Role      `json:"role"`
	Bio                *string   `json:"bio,omitempty"`
	Avatar             *string   `json:"avatar,omitempty"`
	EmailNotifications bool      `json:"email_notifications"`
	PushNotifications  bool      `json:"push_notifications"`
}

// Session binds an opaque token to a user snapshot for one browser context.
// Sessions live in Redis with a TTL matching ExpiresAt; an expired session is
// indistinguishable from an absent one. The ID is 32 bytes of crypto/rand,
// base64url-encoded, and is the only value the client ever holds.
//
// DeviceInfo and IPAddress are audit metadata captured at login so users can
// recognize their own sessions; they play no part in authorization.
type Session struct {
	ID         string       `json:"id"`
	User       UserSnapshot `json:"user"`
	DeviceInfo string       `json:"device_info,omitempty"`
	IPAddress  string       `json:"ip_address,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}
