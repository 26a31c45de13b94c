package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requireUUIDParam rejects requests whose path parameter is not a UUID before
// the value reaches a uuid column.
func requireUUIDParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := uuid.Validate(c.Param(name)); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(c, name+" must be a UUID"))
			return
		}
		c.Next()
	}
}
