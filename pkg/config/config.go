// Package config provides application configuration management with
// environment variable loading, validation, and sensible defaults. It
// supports .env files for local development and validates all required
// settings on startup so misconfiguration fails fast instead of at the first
// request.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all configuration sections into a single struct.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OAuth     OAuthConfig
	Session   SessionConfig
	Payment   PaymentConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port        string
	Environment string // "development" or "production"; production enables Secure cookies
	FrontendURL string // origin of the web frontend, used for post-login redirects
}

// DatabaseConfig holds PostgreSQL connection parameters and pool settings.
type DatabaseConfig struct {
	Host         string
	Port         string
	Database     string
	User         string
	Password     string
	MaxConns     int
	QueryTimeout time.Duration // per-operation bound on store calls
}

// RedisConfig holds session-cache connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// OAuthConfig holds Google OAuth 2.0 client credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// SessionConfig controls session issuance.
type SessionConfig struct {
	Secret         []byte        // signs the OAuth state token; must be at least 32 bytes
	TTL            time.Duration // session lifetime, default 24h
	CreateOnSignup bool          // whether signup also opens a session (caller policy)
}

// PaymentConfig points at the external payment gateway. The gateway is an
// opaque collaborator: we only create checkout sessions against it.
type PaymentConfig struct {
	GatewayURL string
	SecretKey  string
}

// CORSConfig controls which origins can access the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig bounds request rates on the auth endpoints.
type RateLimitConfig struct {
	RequestsPerMinute int
	WindowDuration    time.Duration
}

// Load reads and validates configuration from environment variables. It
// attempts to load a .env file if present (for local development) but does
// not fail if the file is missing.
//
// Required environment variables:
//   - POSTGRES_PASSWORD
//   - GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET
//   - SESSION_SECRET (>=32 bytes)
//   - PAYMENT_GATEWAY_SECRET_KEY
//
// Everything else has a default; see .env.example.
func Load() (*Config, error) {
	_ = godotenv.Load()

	postgresPassword, err := getEnvRequired("POSTGRES_PASSWORD")
	if err != nil {
		return nil, err
	}

	googleClientID, err := getEnvRequired("GOOGLE_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	googleClientSecret, err := getEnvRequired("GOOGLE_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	sessionSecret, err := getEnvRequired("SESSION_SECRET")
	if err != nil {
		return nil, err
	}

	paymentSecret, err := getEnvRequired("PAYMENT_GATEWAY_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "3001"),
			Environment: getEnv("ENV", "development"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("POSTGRES_HOST", "localhost"),
			Port:         getEnv("POSTGRES_PORT", "5432"),
			Database:     getEnv("POSTGRES_DB", "promptmarket"),
			User:         getEnv("POSTGRES_USER", "promptmarket"),
			Password:     postgresPassword,
			MaxConns:     getEnvAsInt("POSTGRES_MAX_CONNS", 25),
			QueryTimeout: getEnvAsDuration("QUERY_TIMEOUT", 20*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 100),
		},
		OAuth: OAuthConfig{
			ClientID:     googleClientID,
			ClientSecret: googleClientSecret,
			RedirectURL:  getEnv("AUTH_REDIRECT_URL", "http://localhost:3001/api/auth/google/callback"),
		},
		Session: SessionConfig{
			Secret:         []byte(sessionSecret),
			TTL:            getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			CreateOnSignup: getEnv("SESSION_ON_SIGNUP", "false") == "true",
		},
		Payment: PaymentConfig{
			GatewayURL: getEnv("PAYMENT_GATEWAY_URL", "https://api.payment.example.com"),
			SecretKey:  paymentSecret,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowDuration:    getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks that all required configuration is present and well-formed.
// Called automatically by Load but also usable on hand-built configs in
// tests.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be a valid integer: %w", err)
	}

	if _, err := strconv.Atoi(c.Database.Port); err != nil {
		return fmt.Errorf("database port must be a valid integer: %w", err)
	}
	if c.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	if _, err := strconv.Atoi(c.Redis.Port); err != nil {
		return fmt.Errorf("redis port must be a valid integer: %w", err)
	}

	if c.OAuth.ClientID == "" {
		return fmt.Errorf("google OAuth client ID is required")
	}
	if c.OAuth.ClientSecret == "" {
		return fmt.Errorf("google OAuth client secret is required")
	}
	if _, err := url.ParseRequestURI(c.OAuth.RedirectURL); err != nil {
		return fmt.Errorf("invalid OAuth redirect URL: %w", err)
	}

	if _, err := url.ParseRequestURI(c.Server.FrontendURL); err != nil {
		return fmt.Errorf("invalid frontend URL: %w", err)
	}

	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if _, err := url.ParseRequestURI(c.Payment.GatewayURL); err != nil {
		return fmt.Errorf("invalid payment gateway URL: %w", err)
	}
	if c.Payment.SecretKey == "" {
		return fmt.Errorf("payment gateway secret key is required")
	}

	return nil
}

// DSN returns the PostgreSQL connection string for the lib/pq driver.
//
// Note: SSL is disabled for local development. In production, enable SSL and
// configure appropriate certificates.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database,
	)
}

// Address returns the Redis server address in "host:port" format.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction reports whether the server is running in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRequired retrieves a required environment variable, erroring when it
// is unset or empty.
func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration parses a Go duration ("90s", "24h") with a fallback.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice parses a comma-separated environment variable.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	current := ""
	for _, char := range valueStr {
		if char == ',' {
			if current != "" {
				result = append(result, current)
				current = ""
			}
		} else {
			current += string(char)
		}
	}
	if current != "" {
		result = append(result, current)
	}
	return result
}
