package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/security"
	"github.com/arklim/storefront-iam/internal/usecase"
)

const authErrorKey = "auth_error"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// Authenticate reads the access token cookie and, when it parses, stores the
// claims on the context. Requests without a usable token pass through
// anonymously; RequireAuth decides whether that is acceptable.
func Authenticate(issuer port.AccessTokenIssuer, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		raw, err := c.Cookie(cookieName)
		raw = strings.TrimSpace(raw)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		claims, err := issuer.Parse(raw)
		if err != nil {
			c.Set(authErrorKey, err)
			if !errors.Is(err, security.ErrExpiredAccessToken) && !errors.Is(err, security.ErrInvalidAccessToken) {
				logger.Warn("access token parse failed", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = claims.UserID
		}

		c.Next()
	}
}

// RequireAuth rejects requests that Authenticate left anonymous.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetClaims(c); ok {
			c.Next()
			return
		}

		msg := "authentication required"
		if value, exists := c.Get(authErrorKey); exists {
			if err, ok := value.(error); ok && errors.Is(err, security.ErrExpiredAccessToken) {
				msg = "access token expired"
			} else {
				msg = "invalid access token"
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, msg))
	}
}

// RequireAnyRole checks that the authenticated role is in the allowlist.
func RequireAnyRole(allowlist []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if !usecase.IsAuthorized(claims.Role, allowlist) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}
