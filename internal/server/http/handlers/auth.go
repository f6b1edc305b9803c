package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/http/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users        UserService
	sessions     auth.SessionStore
	log          logging.Logger
	tokenTTL     time.Duration
	secureCookie bool
}

func NewAuthHandler(users UserService, sessions auth.SessionStore, log logging.Logger, tokenTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		sessions:     sessions,
		log:          log.With("handler", "auth"),
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginResponse struct {
	AccessToken string  `json:"access_token"`
	CSRFToken   string  `json:"csrf_token"`
	User        userDTO `json:"user"`
}

func (h *AuthHandler) setTokenCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     common.AccessTokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// Login exchanges credentials for an access token and the session CSRF
// token. The access token is also set as an HttpOnly cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, fmt.Errorf("%w: malformed request body", common.ErrorValidation))
		return
	}
	if req.Username == "" || req.Password == "" {
		response.Fail(c, fmt.Errorf("%w: username and password are required", common.ErrorValidation))
		return
	}

	res, err := h.users.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.log.Info(c.Request.Context(), "login failed", "username", req.Username, "ip", c.ClientIP())
		response.Fail(c, err)
		return
	}

	h.setTokenCookie(c, res.AccessToken, int(h.tokenTTL.Seconds()))
	response.RespondOK(c, loginResponse{
		AccessToken: res.AccessToken,
		CSRFToken:   res.CSRFToken,
		User: userDTO{
			ID:       res.User.ID,
			Username: res.User.Username,
			Role:     res.User.Role,
		},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.users.Logout(c.Request.Context(), rc); err != nil {
		response.Fail(c, err)
		return
	}
	h.setTokenCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

// CSRF returns the CSRF token bound to the caller's session.
func (h *AuthHandler) CSRF(c *gin.Context) {
	rc, ok := auth.FromContext(c.Request.Context())
	if !ok {
		response.Fail(c, common.ErrorUnauthorized)
		return
	}
	token, err := h.sessions.CSRFToken(c.Request.Context(), rc.SessionID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"csrf_token": token})
}
