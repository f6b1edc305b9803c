package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/docvault/internal/common"
)

// csrfTokenBytes is the entropy of a session CSRF token (256 bits).
const csrfTokenBytes = 32

// NewCSRFToken returns a fresh hex-encoded 256-bit token.
func NewCSRFToken() (string, error) {
	return common.MakeRandHexString(csrfTokenBytes)
}

// ValidCSRFToken compares a caller-supplied token with the session token in
// constant time. An empty token on either side is never valid.
func ValidCSRFToken(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
