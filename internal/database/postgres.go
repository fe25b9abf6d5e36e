// Package database provides database access layers for PostgreSQL and Redis.
// Implements connection management, query operations, and transaction handling
// with automatic retry logic and connection pooling.
//
// PostgreSQL is used for persistent user and product data with ACID guarantees.
// Redis is used for sessions, caching, and rate limiting with high performance.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/pkg/config"
	"github.com/promptmarket/api/pkg/utils"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint
// violation. See https://www.postgresql.org/docs/current/errcodes-appendix.html
const uniqueViolation = "23505"

// TxFunc is a function that runs within a database transaction.
// Used with WithTransaction to ensure atomic operations.
type TxFunc func(tx *sql.Tx) error

// Querier is an interface for executing SQL queries.
// Abstracts *sql.DB and *sql.Tx to allow the same query code to work
// both inside and outside transactions.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresDB wraps a PostgreSQL database connection with connection pooling.
// Provides high-level methods for user and product persistence plus
// transaction handling.
//
// Features:
//   - Automatic connection retry with exponential backoff
//   - Connection pooling (configurable max connections)
//   - Transaction support with automatic rollback on errors
//   - Panic recovery in transactions
//   - Health check support
type PostgresDB struct {
	db *sql.DB // Underlying connection pool
}

// NewPostgresDB creates a new PostgreSQL connection with automatic retry.
// Implements exponential backoff retry logic to handle transient connection
// failures during startup (e.g., database container not ready yet).
//
// Connection pool settings:
//   - MaxOpenConns: From configuration (default: 25)
//   - MaxIdleConns: Half of MaxOpenConns
//   - ConnMaxLifetime: 1 hour
//
// Example:
//
//	db, err := database.NewPostgresDB(&cfg.Database)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Database connection failed")
//	}
//	defer db.Close()
func NewPostgresDB(cfg *config.DatabaseConfig) (*PostgresDB, error) {
	var db *sql.DB
	var connErr error

	// Retry database connection with exponential backoff
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryConfig := utils.StoreRetryConfig()

	err := utils.Retry(ctx, retryConfig, func() error {
		var err error
		db, err = sql.Open("postgres", cfg.DSN())
		if err != nil {
			connErr = err
			log.Warn().Err(err).Msg("Failed to open database connection, retrying...")
			return err
		}

		// Set connection pool settings
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns / 2)
		db.SetConnMaxLifetime(time.Hour)

		// Verify connection with ping
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()

		if err := db.PingContext(pingCtx); err != nil {
			connErr = err
			log.Warn().Err(err).Msg("Failed to ping database, retrying...")
			db.Close() // Clean up failed connection
			return err
		}

		return nil
	})

	if err != nil {
		if connErr != nil {
			return nil, fmt.Errorf("failed to connect to database after retries: %w", connErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")

	return &PostgresDB{db: db}, nil
}

// Close closes the database connection and releases all resources.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// Ping checks if the database connection is alive.
// Used by the readiness endpoint to verify database availability.
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// RunMigrations executes the schema migration script.
// Should be called during application startup. The migration SQL is
// idempotent (CREATE TABLE IF NOT EXISTS and friends), so running it
// against an existing database is safe.
func (p *PostgresDB) RunMigrations(ctx context.Context, migrationSQL string) error {
	_, err := p.db.ExecContext(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("Database migrations completed successfully")
	return nil
}

// WithTransaction executes a function within a database transaction.
// Automatically handles commit on success and rollback on error or panic.
//
// Example:
//
//	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
//	    product, err := database.CreateProductTx(ctx, tx, params)
//	    if err != nil {
//	        return err // Automatic rollback
//	    }
//	    return database.CreatePromptsTx(ctx, tx, product.ID, prompts)
//	})
func (p *PostgresDB) WithTransaction(ctx context.Context, fn TxFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Ensure transaction is closed
	defer func() {
		if r := recover(); r != nil {
			// Panic occurred, rollback and re-panic
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(r)
		}
	}()

	// Execute the function
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	// Success, commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// userColumns is the canonical column list for scanning users.
const userColumns = `id, name, email, password_hash, google_id, role, bio, avatar_url,
	email_notifications, push_notifications, created_at, updated_at, last_login`

// scanUser scans a user row in userColumns order.
func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.GoogleID,
		&user.Role,
		&user.Bio,
		&user.Avatar,
		&user.EmailNotifications,
		&user.PushNotifications,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// translateError maps driver errors to store sentinels so callers can
// use errors.Is instead of inspecting pq internals.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// GetUserByID retrieves a user by their unique UUID.
// Returns ErrNotFound if no such user exists.
func (p *PostgresDB) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := scanUser(p.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email address. The lookup is
// case-insensitive, matching the unique index on lower(email).
// Returns ErrNotFound if no such user exists.
func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE lower(email) = lower($1)`, userColumns)

	user, err := scanUser(p.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByGoogleID retrieves a user by their Google account ID.
// Returns ErrNotFound if no account is linked to that identity.
func (p *PostgresDB) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE google_id = $1`, userColumns)

	user, err := scanUser(p.db.QueryRowContext(ctx, query, googleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// CreateUser inserts a new credential-based account. The email is
// stored lowercase. Returns ErrDuplicate if the email is taken.
func (p *PostgresDB) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, lower($2), $3)
		RETURNING %s
	`, userColumns)

	user, err := scanUser(p.db.QueryRowContext(ctx, query, name, email, passwordHash))
	if err != nil {
		if terr := translateError(err); errors.Is(terr, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Msg("User created")

	return user, nil
}

// CreateOAuthUser inserts a new account backed by a Google identity.
// These accounts have no password hash; they authenticate through
// OAuth only until a password is set. Returns ErrDuplicate when either
// the email or the Google ID is already taken, which callers treat as
// a concurrent-creation race and retry via lookup.
func (p *PostgresDB) CreateOAuthUser(ctx context.Context, googleID, email, name string, avatarURL *string) (*models.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (name, email, google_id, avatar_url, last_login)
		VALUES ($1, lower($2), $3, $4, NOW())
		RETURNING %s
	`, userColumns)

	user, err := scanUser(p.db.QueryRowContext(ctx, query, name, email, googleID, avatarURL))
	if err != nil {
		if terr := translateError(err); errors.Is(terr, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create oauth user: %w", err)
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Msg("OAuth user created")

	return user, nil
}

// LinkGoogleID attaches a Google identity to an existing account,
// typically when a user who signed up with a password logs in with
// Google using the same email. The avatar is filled in only when the
// account has none.
func (p *PostgresDB) LinkGoogleID(ctx context.Context, userID uuid.UUID, googleID string, avatarURL *string) (*models.User, error) {
	query := fmt.Sprintf(`
		UPDATE users
		SET google_id = $2,
			avatar_url = COALESCE(avatar_url, $3),
			updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, userColumns)

	user, err := scanUser(p.db.QueryRowContext(ctx, query, userID, googleID, avatarURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if terr := translateError(err); errors.Is(terr, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to link google id: %w", err)
	}

	return user, nil
}

// UpdateProfileParams carries the mutable profile fields. Nil pointers
// leave the corresponding column unchanged.
type UpdateProfileParams struct {
	Name               *string
	Bio                *string
	Avatar             *string
	EmailNotifications *bool
	PushNotifications  *bool
}

// UpdateUserProfile applies a partial profile update and returns the
// updated row. Returns ErrNotFound if the user does not exist.
func (p *PostgresDB) UpdateUserProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (*models.User, error) {
	query := fmt.Sprintf(`
		UPDATE users
		SET name = COALESCE($2, name),
			bio = COALESCE($3, bio),
			avatar_url = COALESCE($4, avatar_url),
			email_notifications = COALESCE($5, email_notifications),
			push_notifications = COALESCE($6, push_notifications),
			updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, userColumns)

	user, err := scanUser(p.db.QueryRowContext(ctx, query,
		userID,
		params.Name,
		params.Bio,
		params.Avatar,
		params.EmailNotifications,
		params.PushNotifications,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	return user, nil
}

// UpdateLastLogin updates the last login timestamp for a user.
func (p *PostgresDB) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET last_login = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	_, err := p.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}
