package services

import (
	"context"
	"errors"
	"net/mail"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/promptmarket/api/internal/database"
	"github.com/promptmarket/api/internal/models"
)

// bcryptCost is the work factor for password hashing. 12 keeps a
// single hash around 250ms on current hardware, slow enough to blunt
// offline cracking without making login sluggish.
const bcryptCost = 12

// dummyHash is a valid bcrypt hash of a random string. When login hits
// an unknown email we still run a bcrypt comparison against it so the
// response time does not reveal whether the account exists.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// fallbackName is used when an OAuth provider returns a profile with
// no display name.
const fallbackName = "Unknown User"

// UserStore is the persistence interface the auth service depends on.
// *database.PostgresDB satisfies it; tests substitute a fake.
type UserStore interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	CreateOAuthUser(ctx context.Context, googleID, email, name string, avatarURL *string) (*models.User, error)
	LinkGoogleID(ctx context.Context, userID uuid.UUID, googleID string, avatarURL *string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, userID uuid.UUID, params database.UpdateProfileParams) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}

// AuthService implements credential authentication, signup, and OAuth
// identity resolution against the user store.
type AuthService struct {
	users        UserStore
	queryTimeout time.Duration
}

// NewAuthService creates an auth service. queryTimeout bounds every
// store call, preventing a wedged database from pinning request
// goroutines indefinitely.
func NewAuthService(users UserStore, queryTimeout time.Duration) *AuthService {
	return &AuthService{
		users:        users,
		queryTimeout: queryTimeout,
	}
}

// Authenticate verifies an email/password pair and returns the account
// on success.
//
// All credential failures return ErrInvalidCredentials: unknown email,
// wrong password, and accounts that have no password because they were
// created through OAuth. Infrastructure failures return
// ErrCredentialStoreUnavailable so handlers can answer 500 rather than
// blaming the caller's credentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Burn a comparison so unknown emails cost the same as
			// wrong passwords.
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("User lookup failed during login")
		return nil, ErrCredentialStoreUnavailable
	}

	if user.PasswordHash == nil {
		// OAuth-only account. Reported identically to a wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		// Audit metadata only, not worth failing the login
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to update last login")
	}

	return user, nil
}

// Signup validates the registration input, hashes the password, and
// creates the account. Validation stops at the first failing rule and
// reports it as a ValidationError; a taken email is reported as
// ErrDuplicateEmail.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	if err := validateSignup(name, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("Password hashing failed")
		return nil, ErrCredentialStoreUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.users.CreateUser(ctx, name, email, string(hash))
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		log.Error().Err(err).Msg("User creation failed")
		return nil, ErrCredentialStoreUnavailable
	}

	return user, nil
}

// OAuthProfile is the provider identity handed to ResolveOAuthIdentity
// after a successful token exchange.
type OAuthProfile struct {
	GoogleID  string
	Email     string
	Name      string
	AvatarURL *string
}

// ResolveOAuthIdentity maps a provider identity onto a local account,
// creating or linking as needed. Resolution runs in three steps:
//
//  1. An account already linked to this Google ID wins outright.
//  2. Otherwise an account with the same email is linked to the
//     Google ID, so password users can start logging in with Google
//     without forking a second account.
//  3. Otherwise a new OAuth-only account is created.
//
// A unique violation during step 3 means a concurrent callback created
// the account first; resolution is retried through the lookup path so
// both callbacks land on the same account.
func (s *AuthService) ResolveOAuthIdentity(ctx context.Context, profile OAuthProfile) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.resolveOAuthIdentity(ctx, profile)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to update last login")
	}

	return user, nil
}

func (s *AuthService) resolveOAuthIdentity(ctx context.Context, profile OAuthProfile) (*models.User, error) {
	// Step 1: existing link
	user, err := s.users.GetUserByGoogleID(ctx, profile.GoogleID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		log.Error().Err(err).Msg("Google ID lookup failed")
		return nil, ErrCredentialStoreUnavailable
	}

	// Step 2: same email, link the identity. Profiles without an email
	// must not match anything here, or two unrelated no-email identities
	// would be merged into one account.
	if profile.Email != "" {
		user, err = s.users.GetUserByEmail(ctx, profile.Email)
		if err == nil {
			linked, err := s.users.LinkGoogleID(ctx, user.ID, profile.GoogleID, profile.AvatarURL)
			if err != nil {
				log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Google ID link failed")
				return nil, ErrCredentialStoreUnavailable
			}
			log.Info().
				Str("user_id", linked.ID.String()).
				Msg("Linked Google identity to existing account")
			return linked, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			log.Error().Err(err).Msg("Email lookup failed")
			return nil, ErrCredentialStoreUnavailable
		}
	}

	// Step 3: first login, create the account
	name := profile.Name
	if name == "" {
		name = fallbackName
	}

	user, err = s.users.CreateOAuthUser(ctx, profile.GoogleID, profile.Email, name, profile.AvatarURL)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, database.ErrDuplicate) {
		// Concurrent callback raced us to the insert. The account now
		// exists, find it by Google ID or email.
		if user, err := s.users.GetUserByGoogleID(ctx, profile.GoogleID); err == nil {
			return user, nil
		}
		if profile.Email != "" {
			if user, err := s.users.GetUserByEmail(ctx, profile.Email); err == nil {
				linked, lerr := s.users.LinkGoogleID(ctx, user.ID, profile.GoogleID, profile.AvatarURL)
				if lerr != nil {
					log.Error().Err(lerr).Msg("Google ID link failed after create race")
					return nil, ErrCredentialStoreUnavailable
				}
				return linked, nil
			}
		}
	}

	log.Error().Err(err).Msg("OAuth user creation failed")
	return nil, ErrCredentialStoreUnavailable
}

// UpdateProfileInput carries the mutable profile fields of a user.
// Nil pointers mean "leave unchanged".
type UpdateProfileInput struct {
	Name               *string
	Bio                *string
	Avatar             *string
	EmailNotifications *bool
	PushNotifications  *bool
}

// UpdateProfile applies a partial profile update on behalf of actor.
// Users may only edit their own profile; admins may edit anyone's.
// Returns the updated account so callers can refresh session snapshots.
func (s *AuthService) UpdateProfile(ctx context.Context, actor models.UserSnapshot, targetID uuid.UUID, input UpdateProfileInput) (*models.User, error) {
	if actor.ID != targetID && actor.Role != models.RoleAdmin {
		return nil, ErrUnauthorized
	}

	if input.Name != nil && *input.Name == "" {
		return nil, NewValidationError("name", "name must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.users.UpdateUserProfile(ctx, targetID, database.UpdateProfileParams{
		Name:               input.Name,
		Bio:                input.Bio,
		Avatar:             input.Avatar,
		EmailNotifications: input.EmailNotifications,
		PushNotifications:  input.PushNotifications,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("user_id", targetID.String()).Msg("Profile update failed")
		return nil, ErrCredentialStoreUnavailable
	}

	return user, nil
}

// validateSignup checks registration input in a fixed order so clients
// always receive the first violated rule: name, then email, then the
// password rules.
func validateSignup(name, email, password string) error {
	if name == "" {
		return NewValidationError("name", "name must not be empty")
	}

	if email == "" {
		return NewValidationError("email", "email must not be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return NewValidationError("email", "email address is not valid")
	}

	if len(password) < 8 {
		return NewValidationError("password", "password must be at least 8 characters")
	}
	if !containsLower(password) {
		return NewValidationError("password", "password must contain a lowercase letter")
	}
	if !containsDigit(password) {
		return NewValidationError("password", "password must contain a digit")
	}

	return nil
}

func containsLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
