// Package auth issues and checks access tokens and carries the identity of
// the caller through request handling.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims embeds the registered claims plus the identity the pipeline needs.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"uid"`
	Username  string `json:"usr"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
}

// Identity is what a token asserts about its bearer.
type Identity struct {
	UserID    int64
	Username  string
	Role      string
	SessionID string
}

func GenerateToken(id Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:    id.UserID,
		Username:  id.Username,
		Role:      id.Role,
		SessionID: id.SessionID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates the signature and expiry and returns the identity.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.SessionID == "" {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}
