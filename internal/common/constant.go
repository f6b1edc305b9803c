package common

// CSRFHeaderName carries the session CSRF token on mutating HTTP requests.
const CSRFHeaderName = "X-CSRF-Token"

// AccessTokenCookieName is the cookie fallback for the bearer access token.
const AccessTokenCookieName = "access_token"

// DefaultMaxUploadSize is the plaintext cap for uploaded documents (20 MiB).
const DefaultMaxUploadSize int64 = 20 << 20

// Roles known to the auth collaborator.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)
