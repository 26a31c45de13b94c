package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/transport/http/middleware"
	"github.com/arklim/storefront-iam/internal/usecase"
)

// AuthHandler exposes registration, login, refresh, logout and session introspection.
type AuthHandler struct {
	auth    *usecase.AuthService
	cookies *SessionCookies
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, cookies *SessionCookies) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies}
}

// RegisterRoutes binds authentication routes. loginLimit guards the credential
// endpoint and registerLimit the account creation endpoint.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginLimit, registerLimit, refreshLimit gin.HandlerFunc) {
	r.POST("/register", chain(registerLimit, h.register)...)
	r.POST("/login", chain(loginLimit, h.login)...)
	r.POST("/refresh", chain(refreshLimit, h.refresh)...)
	r.POST("/logout", h.logout)
	r.GET("/is-auth", h.isAuth)
	r.GET("/me/role", middleware.RequireAuth(), h.currentRole)
}

// register godoc
// @Summary Register a new user account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request payload"
// @Success 201 {object} UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/users/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		respondUsecaseError(c, err, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(*user))
}

// login godoc
// @Summary Exchange credentials for session cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/users/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondUsecaseError(c, err, "failed to login")
		return
	}

	h.cookies.SetAccess(c, result.AccessToken, result.AccessTokenExpiresAt)
	h.cookies.SetRefresh(c, result.RefreshToken, result.RefreshTokenExpiresAt)

	c.JSON(http.StatusOK, LoginResponse{
		User:                  newUserResponse(result.User),
		AccessTokenExpiresAt:  result.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: result.RefreshTokenExpiresAt,
	})
}

// refresh issues a new access token from the refresh cookie. The refresh
// token itself is not rotated.
func (h *AuthHandler) refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(h.cookies.RefreshName())
	if err != nil || strings.TrimSpace(refreshToken) == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "refresh token missing"))
		return
	}

	result, err := h.auth.LoginWithRefreshToken(c.Request.Context(), refreshToken)
	if err != nil {
		if isSessionEnded(err) {
			h.cookies.Clear(c)
		}
		respondUsecaseError(c, err, "failed to refresh session")
		return
	}

	h.cookies.SetAccess(c, result.AccessToken, result.AccessTokenExpiresAt)

	c.JSON(http.StatusOK, LoginResponse{
		User:                  newUserResponse(result.User),
		AccessTokenExpiresAt:  result.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: result.RefreshTokenExpiresAt,
	})
}

// logout always clears the cookies. A failed server side revocation is
// reported as 500 so the client knows the refresh token may still be live.
func (h *AuthHandler) logout(c *gin.Context) {
	h.cookies.Clear(c)

	if refreshToken, err := c.Cookie(h.cookies.RefreshName()); err == nil && refreshToken != "" {
		if err := h.auth.Logout(c.Request.Context(), refreshToken); err != nil {
			respondUsecaseError(c, err, "failed to revoke refresh token")
			return
		}
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) isAuth(c *gin.Context) {
	_, ok := middleware.GetClaims(c)
	c.JSON(http.StatusOK, IsAuthResponse{Authenticated: ok})
}

func (h *AuthHandler) currentRole(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	c.JSON(http.StatusOK, CurrentRoleResponse{Role: claims.Role})
}

func isSessionEnded(err error) bool {
	return matchesAny(err, []ErrorCase{
		{Err: usecase.ErrUnauthorized},
		{Err: usecase.ErrTokenNotFound},
		{Err: usecase.ErrInactiveAccount},
	})
}

// chain prepends an optional guard to a handler.
func chain(guard gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if guard == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{guard, handler}
}
