package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/usecase"
)

// UserHandler exposes the administrative user endpoints.
type UserHandler struct {
	users *usecase.UserService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes binds the admin user routes. guards run ahead of every handler.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, guards ...gin.HandlerFunc) {
	group := r.Group("", guards...)
	group.GET("", h.list)
	group.GET("/by-email", h.getByEmail)

	byID := group.Group("/:id", requireUUIDParam("id"))
	byID.GET("", h.get)
	byID.PUT("", h.update)
	byID.DELETE("", h.delete)
	byID.PUT("/deactivate", h.setActive(false))
	byID.PUT("/reactivate", h.setActive(true))
}

func (h *UserHandler) list(c *gin.Context) {
	filter := domain.UserFilter{
		Limit:  queryUint(c, "limit"),
		Offset: queryUint(c, "offset"),
	}

	users, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		respondUsecaseError(c, err, "failed to list users")
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, newUserResponse(user))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) get(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondUsecaseError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, newUserResponse(*user))
}

func (h *UserHandler) getByEmail(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email query parameter is required"))
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), email)
	if err != nil {
		respondUsecaseError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, newUserResponse(*user))
}

// update godoc
// @Summary Update a user
// @Description Partial update; changing is_active emits UserActivationChanged.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body UserUpdateRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/users/{id} [put]
func (h *UserHandler) update(c *gin.Context) {
	var req UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid user payload"))
		return
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), domain.UserUpdate{
		Name:        trimmed(req.Name),
		Email:       trimmed(req.Email),
		RoleName:    trimmed(req.Role),
		IsConfirmed: req.IsConfirmed,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondUsecaseError(c, err, "failed to update user")
		return
	}
	c.JSON(http.StatusOK, newUserResponse(*user))
}

func (h *UserHandler) delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondUsecaseError(c, err, "failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) setActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.users.SetActive(c.Request.Context(), c.Param("id"), active); err != nil {
			respondUsecaseError(c, err, "failed to change account activation")
			return
		}

		msg := "account deactivated"
		if active {
			msg = "account reactivated"
		}
		c.JSON(http.StatusOK, MessageResponse{Message: msg})
	}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}

// queryUint returns 0 for absent or malformed values so the usecase defaults apply.
func queryUint(c *gin.Context, name string) uint64 {
	raw := c.Query(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
