package shared

import (
	"errors"

	"github.com/bigelephant/storefront/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = httpx.NewError(httpx.ErrUnauthorized, "InvalidCredentials", "invalid email or password")
	// ErrSessionNotFound indicates an unknown, expired or revoked session token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = httpx.NewError(httpx.ErrConflict, "DuplicateRequest", "request with this idempotency key was already processed")
)
