// Package handlers implements the HTTP endpoints of the marketplace
// API. Handlers decode requests, invoke the service layer, and map
// service errors onto HTTP status codes; they hold no business logic
// of their own.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/internal/middleware"
	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/internal/services"
	"github.com/promptmarket/api/pkg/utils"
)

// stateCookieName holds the OAuth state mirror for the login round trip.
const stateCookieName = "oauth_state"

// Authenticator defines the credential operations the auth handler
// needs. *services.AuthService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Signup(ctx context.Context, name, email, password string) (*models.User, error)
}

// OAuthFlow defines the Google login operations. *services.OAuthService
// satisfies it.
type OAuthFlow interface {
	GenerateState() (string, error)
	VerifyState(ctx context.Context, state string) error
	GetAuthURL(state string) string
	AuthenticateUser(ctx context.Context, code string) (*models.User, error)
}

// SessionManager defines the session lifecycle operations.
// *services.SessionService satisfies it.
type SessionManager interface {
	CreateSession(ctx context.Context, user *models.User, deviceInfo, ipAddress string) (*models.Session, error)
	DestroySession(ctx context.Context, sessionID string) error
	TTL() time.Duration
}

// AuthHandler handles the authentication endpoints: signup, login,
// logout, the session probe, and the Google OAuth flow.
type AuthHandler struct {
	auth            Authenticator
	oauth           OAuthFlow
	sessions        SessionManager
	isProduction    bool
	frontendURL     string
	sessionOnSignup bool
}

// NewAuthHandler creates an authentication handler.
// When sessionOnSignup is true, a successful signup also opens a
// session so the new user lands logged in.
func NewAuthHandler(auth Authenticator, oauth OAuthFlow, sessions SessionManager, isProduction bool, frontendURL string, sessionOnSignup bool) *AuthHandler {
	return &AuthHandler{
		auth:            auth,
		oauth:           oauth,
		sessions:        sessions,
		isProduction:    isProduction,
		frontendURL:     frontendURL,
		sessionOnSignup: sessionOnSignup,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse is the body of a successful login or session probe.
type sessionResponse struct {
	User      models.UserSnapshot `json:"user"`
	ExpiresAt string              `json:"expires_at,omitempty"`
}

// Signup registers a new account with name, email, and password.
//
// Validation stops at the first failing rule and its message is
// returned verbatim; a taken email answers 409 without revealing
// anything else about the existing account.
//
// @Summary      Register a new account
// @Description  Creates an account from name, email, and password. Optionally opens a session.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Registration data"
// @Success      201   {object}  sessionResponse      "Account created"
// @Failure      400   {object}  utils.ErrorResponse  "Validation failed"
// @Failure      409   {object}  utils.ErrorResponse  "Email already registered"
// @Failure      500   {object}  utils.ErrorResponse  "Store unavailable"
// @Router       /api/auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if ve, ok := services.IsValidationError(err); ok {
			middleware.RecordSignup("validation_failed")
			utils.RespondWithError(w, r, http.StatusBadRequest, ve.Message)
			return
		}
		if errors.Is(err, services.ErrDuplicateEmail) {
			middleware.RecordSignup("duplicate_email")
			utils.RespondWithError(w, r, http.StatusConflict, "Email address is already registered")
			return
		}
		middleware.RecordSignup("error")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Registration failed")
		return
	}

	middleware.RecordSignup("success")

	resp := sessionResponse{User: user.Snapshot()}

	if h.sessionOnSignup {
		session, err := h.sessions.CreateSession(r.Context(), user,
			services.ExtractDeviceInfo(r.UserAgent()), utils.ExtractClientIP(r))
		if err != nil {
			// The account exists; the user can still log in normally
			log.Warn().Err(err).Msg("Failed to open session after signup")
		} else {
			utils.SetSessionCookie(w, session.ID, h.sessions.TTL(), h.isProduction)
			resp.ExpiresAt = session.ExpiresAt.Format(time.RFC3339)
		}
	}

	utils.RespondWithJSON(w, r, http.StatusCreated, resp)
}

// Login authenticates an email/password pair and opens a session.
//
// Every credential failure answers the same 401, so responses cannot
// be used to probe which emails have accounts.
//
// @Summary      Log in with email and password
// @Description  Verifies credentials and sets the session cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse      "Logged in"
// @Failure      400   {object}  utils.ErrorResponse  "Malformed body"
// @Failure      401   {object}  utils.ErrorResponse  "Invalid email or password"
// @Failure      500   {object}  utils.ErrorResponse  "Store unavailable"
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			middleware.RecordLoginAttempt("password", "invalid_credentials")
			utils.RespondWithError(w, r, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		middleware.RecordLoginAttempt("password", "error")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Login failed")
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), user,
		services.ExtractDeviceInfo(r.UserAgent()), utils.ExtractClientIP(r))
	if err != nil {
		middleware.RecordLoginAttempt("password", "error")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Login failed")
		return
	}

	middleware.RecordLoginAttempt("password", "success")
	utils.SetSessionCookie(w, session.ID, h.sessions.TTL(), h.isProduction)
	utils.RespondWithJSON(w, r, http.StatusOK, sessionResponse{
		User:      session.User,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	})
}

// Session returns the authenticated user's snapshot. Runs behind
// SessionAuth, so reaching the handler means the cookie resolved.
//
// @Summary      Current session
// @Description  Returns the user attached to the session cookie.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse      "Active session"
// @Failure      401  {object}  utils.ErrorResponse  "Not authenticated"
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, sessionResponse{
		User:      session.User,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout destroys the current session and clears the cookie.
//
// Logout is idempotent: a missing, expired, or already destroyed
// session still answers 200 with the cookie cleared, so a double click
// on the logout button never surfaces an error.
//
// @Summary      Log out
// @Description  Destroys the server-side session and clears the cookie.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  utils.ErrorResponse  "Logged out"
// @Failure      500  {object}  utils.ErrorResponse  "Session store unavailable"
// @Router       /api/auth/logout [delete]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(utils.SessionCookieName); err == nil {
		if err := h.sessions.DestroySession(r.Context(), cookie.Value); err != nil {
			utils.RespondWithError(w, r, http.StatusInternalServerError, "Logout failed")
			return
		}
		middleware.RecordSessionDestroyed()
	}

	utils.ClearSessionCookie(w)
	utils.RespondWithMessage(w, r, http.StatusOK, "Logged out")
}

// GoogleLogin initiates the Google OAuth 2.0 flow. A signed state
// token goes out both as the OAuth state parameter and as a short
// lived cookie; the callback requires the two to match.
//
// @Summary      Initiate Google OAuth login
// @Description  Redirects to Google's consent screen. Sets state cookie for CSRF protection.
// @Tags         auth
// @Produce      html
// @Success      307  {string}  string  "Redirect to Google OAuth"
// @Router       /api/auth/google/login [get]
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := h.oauth.GenerateState()
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate OAuth state")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Login unavailable")
		return
	}

	utils.SetStateCookie(w, stateCookieName, state, 600, h.isProduction) // 10 minutes

	http.Redirect(w, r, h.oauth.GetAuthURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback completes the OAuth flow: verifies the state against
// both its signature and the state cookie, exchanges the code, resolves
// the Google identity onto a local account, opens a session, and sends
// the browser back to the frontend.
//
// Failures redirect to the frontend login page with an error marker
// instead of rendering a JSON error, because the browser is mid
// navigation rather than making an API call.
//
// @Summary      Google OAuth callback
// @Description  Exchanges the authorization code, resolves the account, and sets the session cookie.
// @Tags         auth
// @Produce      html
// @Param        state  query  string  true  "OAuth state"
// @Param        code   query  string  true  "Authorization code from Google"
// @Success      303    {string}  string  "Redirect to frontend"
// @Router       /api/auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	fail := func(reason string) {
		middleware.RecordLoginAttempt("google", reason)
		utils.ClearCookie(w, stateCookieName)
		http.Redirect(w, r, h.frontendURL+"/login?error=oauth_failed", http.StatusSeeOther)
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		log.Warn().Msg("Missing OAuth state cookie")
		fail("invalid_state")
		return
	}

	stateParam := r.URL.Query().Get("state")
	if stateParam == "" || stateParam != stateCookie.Value {
		log.Warn().Msg("OAuth state mismatch")
		fail("invalid_state")
		return
	}

	if err := h.oauth.VerifyState(r.Context(), stateParam); err != nil {
		fail("invalid_state")
		return
	}

	utils.ClearCookie(w, stateCookieName)

	code := r.URL.Query().Get("code")
	if code == "" {
		log.Warn().Msg("Missing authorization code")
		fail("missing_code")
		return
	}

	user, err := h.oauth.AuthenticateUser(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("Google authentication failed")
		fail("error")
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), user,
		services.ExtractDeviceInfo(r.UserAgent()), utils.ExtractClientIP(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session after OAuth login")
		fail("error")
		return
	}

	middleware.RecordLoginAttempt("google", "success")
	utils.SetSessionCookie(w, session.ID, h.sessions.TTL(), h.isProduction)
	http.Redirect(w, r, h.frontendURL+"/products", http.StatusSeeOther)
}
