// Package response writes JSON payloads and maps service errors to HTTP
// status codes without leaking internal details.
package response

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/gin-gonic/gin"
)

// GenericMessage is returned for every failure the caller cannot act on.
const GenericMessage = "operation failed, contact administrator"

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := GenericMessage
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Status maps an error to a status code and a short machine readable code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, common.ErrorInUse):
		return http.StatusConflict, "in_use"
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrInvalidCSRFToken):
		return http.StatusForbidden, "invalid_csrf_token"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// Fail writes err with the status Status picks for it. Server side
// failures carry only GenericMessage; the detail stays in the log.
func Fail(c *gin.Context, err error) {
	status, code := Status(err)
	_ = c.Error(err)
	RespondError(c, status, code, err)
}
