package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recruit-comms/internal/auth"
)

// RequireOrganization rejects callers whose token names no organization.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := auth.IdentityFrom(c.Request.Context()); !ok || id.OrganizationID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
			return
		}
		c.Next()
	}
}

// RequireSameOrganization rejects requests whose path parameter names another
// organization than the caller's. super_admin may read any organization.
func RequireSameOrganization(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c.Request.Context())
		if !IsSuperAdmin(id.Role) && (id.OrganizationID == "" || id.OrganizationID != c.Param(param)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole admits super_admin and the listed roles. Hidden roles such as
// support only pass when listed explicitly.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c.Request.Context())
		switch _, listed := set[id.Role]; {
		case id.Role == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
		case IsSuperAdmin(id.Role), listed:
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		}
	}
}
