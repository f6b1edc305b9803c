// Package common defines shared constants and sentinel errors used across
// DocVault layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrorConflict    = errors.New("already exists")
	ErrorInUse       = errors.New("still referenced")
	ErrorPersistence = errors.New("catalog operation failed")

	// Pipeline errors.
	ErrorValidation = errors.New("validation error")
	ErrorStorage    = errors.New("storage error")
	ErrorDecryption = errors.New("decryption error")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidCSRFToken = errors.New("invalid csrf token")
)
