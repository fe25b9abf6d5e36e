// Package cache provides standardized cache key generation functions.
// Using consistent key naming helps avoid collisions and makes cache
// management easier. All keys follow the pattern: "prefix:identifier".
package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Key prefixes for different cache types.
// These constants ensure consistent key naming across the application.
const (
	SessionPrefix      = "session:"
	UserSessionsPrefix = "user_sessions:"
	ProductPrefix      = "product:"
	RateLimitPrefix    = "ratelimit:"
	OAuthStatePrefix   = "oauth_state:"
)

// SessionKey generates the cache key holding a single session record.
// Sessions are keyed by the opaque session ID alone so that lookups
// during request authentication need only the cookie value.
//
// Example: "session:dGhpcyBpcyBhIHNlc3Npb24gaWQ"
func SessionKey(sessionID string) string {
	return fmt.Sprintf("%s%s", SessionPrefix, sessionID)
}

// UserSessionsKey generates the key of the set indexing all active
// session IDs belonging to a user. Used for bulk eviction and for
// refreshing cached user snapshots after a profile update.
//
// Example: "user_sessions:123e4567-e89b-12d3-a456-426614174000"
func UserSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s%s", UserSessionsPrefix, userID.String())
}

// ProductKey generates a cache key for a single product by ID.
//
// Example: "product:123e4567-e89b-12d3-a456-426614174000"
func ProductKey(productID uuid.UUID) string {
	return fmt.Sprintf("%s%s", ProductPrefix, productID.String())
}

// ProductListKey generates a cache key for a page of the published
// product listing.
//
// Example: "product:list:1:20"
func ProductListKey(page, pageSize int) string {
	return fmt.Sprintf("%slist:%d:%d", ProductPrefix, page, pageSize)
}

// ProductAllPattern returns a glob pattern matching all product cache
// keys. Use with DeletePattern when a product is created or updated,
// since any cached listing page may now be stale.
//
// Example: "product:*"
func ProductAllPattern() string {
	return fmt.Sprintf("%s*", ProductPrefix)
}

// RateLimitKey generates a cache key for a rate limit counter scoped
// to a client identifier (usually an IP address) and an endpoint group.
//
// Example: "ratelimit:auth:192.168.1.1"
func RateLimitKey(group, clientID string) string {
	return fmt.Sprintf("%s%s:%s", RateLimitPrefix, group, clientID)
}

// OAuthStateKey generates a cache key for a consumed OAuth state nonce.
// Marking states as used prevents replay of a captured callback URL.
//
// Example: "oauth_state:f47ac10b-58cc-4372-a567-0e02b2c3d479"
func OAuthStateKey(nonce string) string {
	return fmt.Sprintf("%s%s", OAuthStatePrefix, nonce)
}
