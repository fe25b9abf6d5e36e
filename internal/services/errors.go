// Package services contains the business logic of the marketplace:
// credential authentication, session lifecycle, OAuth identity
// resolution, product management, and checkout.
package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the service layer. Handlers translate
// these into HTTP status codes; raw store errors never cross the
// service boundary.
var (
	// ErrInvalidCredentials is returned for every credential failure:
	// unknown email, wrong password, or an account that has no password
	// because it was created through OAuth. A single error for all
	// three cases keeps responses from leaking which emails exist.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrDuplicateEmail is returned when signup hits an existing
	// account with the same email address.
	ErrDuplicateEmail = errors.New("email address is already registered")

	// ErrNotAuthenticated is returned when a request carries no
	// session, or a session that has expired or been destroyed.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnauthorized is returned when an authenticated user attempts
	// an operation on a resource they do not own.
	ErrUnauthorized = errors.New("not authorized to perform this action")

	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrCredentialStoreUnavailable is returned when the user database
	// cannot be reached or a query fails for infrastructure reasons.
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")

	// ErrSessionStoreUnavailable is returned when the session cache
	// cannot be reached.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")

	// ErrStoreUnavailable is returned for infrastructure failures in
	// the product store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidOAuthState is returned when an OAuth callback carries a
	// state parameter that fails signature verification, has expired,
	// or does not match the state cookie.
	ErrInvalidOAuthState = errors.New("invalid oauth state")

	// ErrPaymentGateway is returned when the payment provider rejects
	// or fails a checkout session request.
	ErrPaymentGateway = errors.New("payment gateway error")
)

// ValidationError reports the first input rule a request violated.
// The message is safe to return to the client verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is a ValidationError and
// returns it for message extraction.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
