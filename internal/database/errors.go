package database

import "errors"

// Store-level sentinel errors. The service layer translates these into
// its own error taxonomy; handlers never see them directly.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation, most
	// commonly a duplicate email or Google ID on the users table.
	ErrDuplicate = errors.New("record already exists")
)
