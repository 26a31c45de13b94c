package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/usecase"
)

// PasswordHandler drives the reset-password flow.
type PasswordHandler struct {
	resets *usecase.PasswordResetService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(resets *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{resets: resets}
}

// RegisterRoutes binds password routes; requestLimit guards reset mail requests.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, requestLimit gin.HandlerFunc) {
	r.POST("/password/reset-request", chain(requestLimit, h.requestReset)...)
	r.PUT("/password", h.setNewPassword)
}

// requestReset godoc
// @Summary Mail a password reset link
// @Description Always answers 202 for unknown emails unless disclosure is enabled.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Account email"
// @Success 202 {object} MessageResponse
// @Router /api/v1/users/password/reset-request [post]
func (h *PasswordHandler) requestReset(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	if err := h.resets.RequestReset(c.Request.Context(), strings.TrimSpace(req.Email)); err != nil {
		respondUsecaseError(c, err, "failed to request password reset")
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "if the account exists, a reset link has been sent"})
}

func (h *PasswordHandler) setNewPassword(c *gin.Context) {
	var req SetNewPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password payload"))
		return
	}

	if err := h.resets.SetNewPassword(c.Request.Context(), strings.TrimSpace(req.Token), req.NewPassword); err != nil {
		respondUsecaseError(c, err, "failed to set new password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}
