package ginutil

import (
	"github.com/gin-gonic/gin"
)

const (
	actorKey  = "entitlekit.actor"
	tenantKey = "entitlekit.tenant_id"
)

// Actor is the authenticated administrator acting on the override surface.
type Actor struct {
	ID    string   `json:"id"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the actor carries the role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SetActor records the verified actor for downstream handlers.
func SetActor(c *gin.Context, a Actor) {
	c.Set(actorKey, a)
}

// CurrentActor returns the actor placed in the context by the admin gate.
func CurrentActor(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return Actor{}, false
	}
	a, ok := v.(Actor)
	return a, ok
}

// SetTenantID records the request's tenant for downstream middleware.
// Typically called by the installation's own auth layer.
func SetTenantID(c *gin.Context, tenantID string) {
	c.Set(tenantKey, tenantID)
}

// TenantID resolves the request's tenant: the context value set by
// SetTenantID wins, then the X-Tenant-ID header.
func TenantID(c *gin.Context) string {
	if v, ok := c.Get(tenantKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.GetHeader("X-Tenant-ID")
}
