package auth

import (
	"strings"
	"time"

	"github.com/bigelephant/storefront/internal/platform/httpx"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrUserNotFound is returned by repositories for unknown emails.
	ErrUserNotFound = httpx.NewError(httpx.ErrNotFound, "UserNotFound", "user not found")
	// ErrEmailTaken rejects registration of an address that already has an account.
	ErrEmailTaken = httpx.NewError(httpx.ErrConflict, "EmailAlreadyExists", "email already registered")
)

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
