package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message echoes the error text, which is only safe for validation errors.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// usecaseErrorCases is checked in order, so the more specific token expiry
// case must precede the generic unauthorized one.
var usecaseErrorCases = []ErrorCase{
	{Err: usecase.ErrValidation, Status: http.StatusBadRequest},
	{Err: usecase.ErrTokenExpired, Status: http.StatusUnauthorized, Message: "token expired"},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrInactiveAccount, Status: http.StatusUnauthorized, Message: "account is not active"},
	{Err: usecase.ErrUnauthorized, Status: http.StatusUnauthorized, Message: "unauthorized"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
	{Err: usecase.ErrTokenNotFound, Status: http.StatusNotFound, Message: "token not found"},
	{Err: usecase.ErrDBConflict, Status: http.StatusConflict, Message: "resource already exists"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	if cs, ok := findCase(err, cases); ok {
		msg := cs.Message
		if msg == "" {
			msg = err.Error()
		}
		c.JSON(cs.Status, NewErrorResponse(c, msg))
		return
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// findCase returns the first case whose sentinel err wraps.
func findCase(err error, cases []ErrorCase) (ErrorCase, bool) {
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			return cs, true
		}
	}
	return ErrorCase{}, false
}

func matchesAny(err error, cases []ErrorCase) bool {
	_, ok := findCase(err, cases)
	return ok
}

// respondUsecaseError maps the usecase sentinel errors. Unmapped errors are
// attached to the gin context so the access log records them.
func respondUsecaseError(c *gin.Context, err error, fallbackMessage string) {
	RespondWithMappedError(c, err, usecaseErrorCases, http.StatusInternalServerError, fallbackMessage)
}
