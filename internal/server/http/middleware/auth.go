// Package middleware holds the gin middleware of the HTTP API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/http/response"
	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	log       logging.Logger
	secretKey []byte
	sessions  auth.SessionStore
}

func NewAuthMiddleware(log logging.Logger, secretKey []byte, sessions auth.SessionStore) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "auth"), secretKey: secretKey, sessions: sessions}
}

// RequireAuth resolves the access token into an auth.RequestContext and
// stores it on the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", common.ErrorUnauthorized)
			return
		}

		id, err := auth.ParseToken(token, am.secretKey)
		if err != nil {
			am.log.Debug(c.Request.Context(), "token rejected", "error", err)
			response.Fail(c, err)
			return
		}

		rc := &auth.RequestContext{
			Identity:  id,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Request = c.Request.WithContext(auth.WithRequestContext(c.Request.Context(), rc))
		c.Next()
	}
}

// RequireCSRF checks the session CSRF token on state changing requests.
func (am *AuthMiddleware) RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		rc, ok := auth.FromContext(c.Request.Context())
		if !ok {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", common.ErrorUnauthorized)
			return
		}
		err := am.sessions.ValidateCSRF(c.Request.Context(), rc.SessionID, c.GetHeader(common.CSRFHeaderName))
		if err != nil {
			am.log.Warn(c.Request.Context(), "csrf check failed", "user_id", rc.UserID, "path", c.FullPath())
			response.Fail(c, err)
			return
		}
		c.Next()
	}
}

// RequireAdmin lets only admin and super admin roles through.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, _ := auth.FromContext(c.Request.Context())
		if !rc.IsAdmin() {
			response.RespondError(c, http.StatusForbidden, "forbidden", common.ErrorForbidden)
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie(common.AccessTokenCookieName); err == nil {
		return cookie
	}
	return ""
}
