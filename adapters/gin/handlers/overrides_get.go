package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/entitlekit/adapters/ginutil"
	"github.com/open-rails/entitlekit/core"
)

// HandleOverridesGET lists every override for the tenant, expired rows
// included, newest expiry first as the store returns them.
func HandleOverridesGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenant_id")
		if tenantID == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if !ginutil.AllowNamed(c, rl, ginutil.RLOverrideRead) {
			ginutil.TooMany(c)
			return
		}

		overrides, err := svc.ListOverrides(c.Request.Context(), tenantID)
		if err != nil {
			ginutil.ServerErr(c, "failed_to_list")
			return
		}
		if overrides == nil {
			overrides = []core.Override{}
		}
		c.JSON(http.StatusOK, gin.H{"overrides": overrides})
	}
}
