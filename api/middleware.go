package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casa_pronosticos/internal/auth"
)

// roleHeader carries the caller's resolved role. The identity provider and
// session handling live in front of this service; by the time a request gets
// here the role is trusted.
const roleHeader = "X-Role"

// RequirePermission gates a route on the caller's role covering the required
// permission, including the category:all expansion.
func RequirePermission(required auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetHeader(roleHeader)
		granted := auth.RolePermissions(role)
		if !auth.IsAuthorized(granted, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}
