package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/transport/http/middleware"
	"github.com/arklim/storefront-iam/internal/usecase"
)

// ConfirmationHandler lets a signed-in user confirm their email address.
type ConfirmationHandler struct {
	confirmations *usecase.AccountConfirmationService
}

// NewConfirmationHandler constructs ConfirmationHandler.
func NewConfirmationHandler(confirmations *usecase.AccountConfirmationService) *ConfirmationHandler {
	return &ConfirmationHandler{confirmations: confirmations}
}

// RegisterRoutes binds confirmation routes behind RequireAuth.
func (h *ConfirmationHandler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/confirmation", middleware.RequireAuth())
	group.POST("/request", h.request)
	group.PUT("", h.confirm)
}

// request mails a confirmation link to the address in the caller's access token.
func (h *ConfirmationHandler) request(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	if err := h.confirmations.RequestConfirmation(c.Request.Context(), claims.Email); err != nil {
		respondUsecaseError(c, err, "failed to request account confirmation")
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "confirmation link sent"})
}

func (h *ConfirmationHandler) confirm(c *gin.Context) {
	var req ConfirmAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid confirmation payload"))
		return
	}

	if err := h.confirmations.Confirm(c.Request.Context(), strings.TrimSpace(req.Token)); err != nil {
		respondUsecaseError(c, err, "failed to confirm account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account confirmed"})
}
