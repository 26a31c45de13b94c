package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is the public view of a user. The password hash never leaves the service.
type UserResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	RoleName    string `json:"role_name"`
	IsConfirmed bool   `json:"is_confirmed"`
	IsActive    bool   `json:"is_active"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned alongside the session cookies.
type LoginResponse struct {
	User                  UserResponse `json:"user"`
	AccessTokenExpiresAt  time.Time    `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time    `json:"refresh_token_expires_at"`
}

// EmailRequest carries a single email address.
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// SetNewPasswordRequest completes a password reset.
type SetNewPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ConfirmAccountRequest completes an account confirmation.
type ConfirmAccountRequest struct {
	Token string `json:"token" binding:"required"`
}

// UserUpdateRequest is a partial update; absent fields are left unchanged.
type UserUpdateRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Role        *string `json:"role"`
	IsConfirmed *bool   `json:"is_confirmed"`
	IsActive    *bool   `json:"is_active"`
}

// IsAuthResponse reports whether the caller presented a valid access token.
type IsAuthResponse struct {
	Authenticated bool `json:"authenticated"`
}

// CurrentRoleResponse carries the caller's role name.
type CurrentRoleResponse struct {
	Role string `json:"role"`
}

// RoleRequest defines the payload for creating or renaming a role.
type RoleRequest struct {
	Name string `json:"name" binding:"required"`
}

// RoleResponse summarizes a role entity.
type RoleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductResponse is the public catalog view of a listing.
type ProductResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newUserResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		RoleName:    user.Role.Name,
		IsConfirmed: user.IsConfirmed,
		IsActive:    user.IsActive,
	}
}

func newRoleResponse(role domain.Role) RoleResponse {
	return RoleResponse{ID: role.ID, Name: role.Name}
}

func newProductResponse(listing domain.Listing) ProductResponse {
	return ProductResponse{
		ID:          listing.ID,
		UserID:      listing.UserID,
		Name:        listing.Name,
		Description: listing.Description,
		Price:       listing.Price,
		IsAvailable: listing.IsAvailable,
		CreatedAt:   listing.CreatedAt,
	}
}
