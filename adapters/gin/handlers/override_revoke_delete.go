package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/entitlekit/adapters/ginutil"
	"github.com/open-rails/entitlekit/core"
)

// HandleOverrideDELETE revokes the override for (tenant_id, feature_key)
// by stamping its expiry to now. The row stays for history.
func HandleOverrideDELETE(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param("tenant_id")
		featureKey := c.Param("feature_key")
		if tenantID == "" || featureKey == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if !ginutil.AllowNamed(c, rl, ginutil.RLOverrideWrite) {
			ginutil.TooMany(c)
			return
		}
		actor, ok := ginutil.CurrentActor(c)
		if !ok {
			ginutil.Unauthorized(c, "missing_actor")
			return
		}

		revoked, err := svc.RevokeOverride(c.Request.Context(), tenantID, featureKey, actor.ID)
		if err != nil {
			ginutil.ServerErr(c, "failed_to_revoke")
			return
		}
		if !revoked {
			ginutil.NotFound(c, "override_not_found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
