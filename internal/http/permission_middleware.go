package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"console-gw/internal/service"
)

// RequirePermission exige un permiso resource.level evaluado sobre los roles
// del usuario autenticado. Debe correr después de JWTAuthMiddleware.
func RequirePermission(catalog service.RoleCatalog, required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}
		if !catalog.Allowed(claims.Roles, required) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}
