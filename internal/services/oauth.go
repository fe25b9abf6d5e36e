package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/pkg/cache"
	"github.com/promptmarket/api/pkg/config"
)

// stateTokenLifetime bounds how long a login attempt may sit on
// Google's consent screen before the callback is rejected.
const stateTokenLifetime = 10 * time.Minute

// IdentityResolver maps a verified provider identity onto a local
// account. *AuthService satisfies it.
type IdentityResolver interface {
	ResolveOAuthIdentity(ctx context.Context, profile OAuthProfile) (*models.User, error)
}

// OAuthService handles Google OAuth 2.0 authentication flows: state
// generation and verification, authorization code exchange, and
// profile retrieval from Google's UserInfo API.
//
// The state parameter is a short-lived HS256-signed token rather than
// a server-side record. Its signature proves we initiated the flow,
// its expiry bounds the flow's lifetime, and its nonce is marked as
// consumed in Redis so a captured callback URL cannot be replayed.
type OAuthService struct {
	config      *oauth2.Config
	resolver    IdentityResolver
	stateSecret []byte
	states      *cache.Cache // consumed-nonce tracking
}

// GoogleUserInfo represents user profile data returned from Google's UserInfo API.
// This structure matches the response from https://www.googleapis.com/oauth2/v2/userinfo
//
// JSON response example:
//
//	{
//	  "id": "1234567890",
//	  "email": "user@example.com",
//	  "name": "John Doe",
//	  "picture": "https://lh3.googleusercontent.com/..."
//	}
type GoogleUserInfo struct {
	ID      string `json:"id"`      // Google account unique identifier
	Email   string `json:"email"`   // User's email address
	Name    string `json:"name"`    // Display name from Google profile
	Picture string `json:"picture"` // Profile picture URL
}

// NewOAuthService creates a new OAuth service configured for Google
// authentication with profile and email scopes.
func NewOAuthService(cfg *config.OAuthConfig, stateSecret []byte, resolver IdentityResolver, states *cache.Cache) *OAuthService {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.profile",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}

	return &OAuthService{
		config:      oauthConfig,
		resolver:    resolver,
		stateSecret: stateSecret,
		states:      states,
	}
}

// GenerateState mints a signed state token for a new login attempt.
// The token carries a random nonce and a ten-minute expiry, signed
// with the session secret. The same value is mirrored into a cookie by
// the handler so the callback can confirm it is answering a flow this
// browser started.
func (s *OAuthService) GenerateState() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTokenLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.stateSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state token: %w", err)
	}

	return signed, nil
}

// VerifyState validates a state token from the OAuth callback:
// signature, expiry, and single use. The nonce is marked consumed on
// success, so presenting the same state twice fails.
func (s *OAuthService) VerifyState(ctx context.Context, state string) error {
	if state == "" {
		return ErrInvalidOAuthState
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.stateSecret, nil
	})
	if err != nil || !token.Valid {
		log.Warn().Err(err).Msg("OAuth state token failed verification")
		return ErrInvalidOAuthState
	}

	// Single use: first caller claims the nonce, replays lose.
	fresh, err := s.states.SetNX(ctx, cache.OAuthStateKey(claims.ID), true, stateTokenLifetime)
	if err != nil {
		log.Error().Err(err).Msg("Failed to record OAuth state nonce")
		return ErrSessionStoreUnavailable
	}
	if !fresh {
		log.Warn().Str("nonce", claims.ID).Msg("OAuth state replay detected")
		return ErrInvalidOAuthState
	}

	return nil
}

// GetAuthURL generates the Google OAuth 2.0 authorization URL for
// redirecting users to Google's consent screen.
func (s *OAuthService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode exchanges an OAuth authorization code for an access token.
// Called in the OAuth callback after the user has authorized the
// application. Common failure reasons: invalid code, expired code,
// network errors.
func (s *OAuthService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// GetUserInfo fetches user profile information from Google's UserInfo
// API using the access token obtained from ExchangeCode.
func (s *OAuthService) GetUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := s.config.Client(ctx, token)

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch user info from Google")
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		log.Error().Err(err).Msg("Failed to decode user info")
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &userInfo, nil
}

// AuthenticateUser handles the back half of the OAuth flow once the
// state has been verified:
//
//  1. Exchange the authorization code for tokens
//  2. Fetch the user's profile from Google
//  3. Resolve the provider identity onto a local account
//
// Returns the local account ready for session creation.
func (s *OAuthService) AuthenticateUser(ctx context.Context, code string) (*models.User, error) {
	token, err := s.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	googleUser, err := s.GetUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	var avatar *string
	if googleUser.Picture != "" {
		avatar = &googleUser.Picture
	}

	user, err := s.resolver.ResolveOAuthIdentity(ctx, OAuthProfile{
		GoogleID:  googleUser.ID,
		Email:     googleUser.Email,
		Name:      googleUser.Name,
		AvatarURL: avatar,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Msg("User authenticated via Google")

	return user, nil
}
