package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/usecase"
)

type RoleHandler struct {
	roles *usecase.RoleService
}

func NewRoleHandler(roles *usecase.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// RegisterRoutes binds role routes. Reads need readGuards, writes need writeGuards.
func (h *RoleHandler) RegisterRoutes(r *gin.RouterGroup, readGuards, writeGuards []gin.HandlerFunc) {
	reads := r.Group("", readGuards...)
	reads.GET("", h.list)
	reads.GET("/:id", requireUUIDParam("id"), h.get)

	writes := r.Group("", writeGuards...)
	writes.POST("", h.create)
	writes.PUT("/:id", requireUUIDParam("id"), h.update)
	writes.DELETE("/:id", requireUUIDParam("id"), h.delete)
}

func (h *RoleHandler) list(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		respondUsecaseError(c, err, "failed to list roles")
		return
	}

	resp := make([]RoleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, newRoleResponse(role))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RoleHandler) get(c *gin.Context) {
	role, err := h.roles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondUsecaseError(c, err, "failed to load role")
		return
	}
	c.JSON(http.StatusOK, newRoleResponse(*role))
}

// create godoc
// @Summary Create a new role
// @Tags Roles
// @Accept json
// @Produce json
// @Param request body RoleRequest true "Role create request"
// @Success 201 {object} RoleResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles [post]
func (h *RoleHandler) create(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.Create(c.Request.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		respondUsecaseError(c, err, "failed to create role")
		return
	}
	c.JSON(http.StatusCreated, newRoleResponse(*role))
}

func (h *RoleHandler) update(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.Update(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Name))
	if err != nil {
		respondUsecaseError(c, err, "failed to update role")
		return
	}
	c.JSON(http.StatusOK, newRoleResponse(*role))
}

func (h *RoleHandler) delete(c *gin.Context) {
	if err := h.roles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondUsecaseError(c, err, "failed to delete role")
		return
	}
	c.Status(http.StatusNoContent)
}
