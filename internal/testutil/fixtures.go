// Package testutil provides common testing utilities, fixtures, and helpers
// for use across the promptmarket test files.
package testutil

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/promptmarket/api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext every fixture account accepts.
const TestPassword = "password123"

var (
	hashOnce sync.Once
	testHash string
)

// TestPasswordHash returns a bcrypt hash of TestPassword. Hashed once at
// MinCost so fixtures stay cheap.
func TestPasswordHash() string {
	hashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		testHash = string(h)
	})
	return testHash
}

// TestUser creates a password-account test user with default values
func TestUser() *models.User {
	now := time.Now()
	return &models.User{
		ID:                 uuid.New(),
		Name:               "Test User",
		Email:              "test@example.com",
		PasswordHash:       StringPtr(TestPasswordHash()),
		Role:               models.RoleUser,
		EmailNotifications: true,
		CreatedAt:          now,
		UpdatedAt:          now,
		LastLogin:          TimePtr(now),
	}
}

// TestOAuthUser creates a Google-account test user with no password hash
func TestOAuthUser() *models.User {
	user := TestUser()
	user.PasswordHash = nil
	user.GoogleID = StringPtr("test-google-id-123")
	user.Avatar = StringPtr("https://example.com/picture.jpg")
	return user
}

// TestUserWithEmail creates a test user with a specific email
func TestUserWithEmail(email string) *models.User {
	user := TestUser()
	user.Email = email
	return user
}

// TestUserWithID creates a test user with a specific ID
func TestUserWithID(id uuid.UUID) *models.User {
	user := TestUser()
	user.ID = id
	return user
}

// TestAdmin creates a test user with the admin role
func TestAdmin() *models.User {
	user := TestUser()
	user.Email = "admin@example.com"
	user.Role = models.RoleAdmin
	return user
}

// TestSession creates a test session bound to the given user
func TestSession(user *models.User) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:         "dGVzdC1zZXNzaW9uLWlkLXRoaXJ0eS10d28tYnl0ZXM",
		User:       user.Snapshot(),
		DeviceInfo: "Chrome 120 · Windows 11 · Desktop",
		IPAddress:  "203.0.113.42",
		CreatedAt:  now,
		ExpiresAt:  now.Add(24 * time.Hour),
	}
}

// TestProduct creates a published prompt-collection test product
func TestProduct(userID uuid.UUID) *models.Product {
	now := time.Now()
	return &models.Product{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       "ChatGPT Marketing Pack",
		Description: "50 prompts for marketing copy",
		Price:       29,
		Features:    []string{"50 prompts", "Lifetime updates"},
		Type:        models.ProductTypePromptCollection,
		Status:      models.ProductStatusPublished,
		PromptCount: 2,
		Prompts: []models.Prompt{
			{ID: uuid.New(), Input: "Write a tagline for {product}", Output: "A short punchy tagline"},
			{ID: uuid.New(), Input: "Draft a launch email for {product}", Output: "A three-paragraph email"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TimePtr returns a pointer to the given time
func TimePtr(t time.Time) *time.Time {
	return &t
}

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// BoolPtr returns a pointer to the given bool
func BoolPtr(b bool) *bool {
	return &b
}

// UserAgents provides common user agent strings for testing
var UserAgents = struct {
	Chrome       string
	Safari       string
	Firefox      string
	MobileChrome string
	MobileSafari string
	Unknown      string
}{
	Chrome:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Safari:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	Firefox:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	MobileChrome: "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36",
	MobileSafari: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	Unknown:      "",
}

// IPAddresses provides test IP addresses
var IPAddresses = struct {
	Public    string
	Private   string
	Localhost string
}{
	Public:    "203.0.113.42",
	Private:   "192.168.1.100",
	Localhost: "127.0.0.1",
}
