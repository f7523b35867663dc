package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/entitlekit/adapters/ginutil"
	"github.com/open-rails/entitlekit/core"
)

// HandleEntitlementCheckGET answers "would this tenant be allowed to use
// this feature" without performing the feature. Frontends use it to gray
// out premium controls and show upgrade hints before the user clicks.
func HandleEntitlementCheckGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := ginutil.TenantID(c)
		if tenantID == "" {
			ginutil.Unauthorized(c, "tenant_unresolved")
			return
		}
		featureKey := c.Query("feature")
		if featureKey == "" {
			ginutil.BadRequest(c, "feature_required")
			return
		}
		if !ginutil.AllowNamed(c, rl, ginutil.RLEntitlementCheck) {
			ginutil.TooMany(c)
			return
		}

		d, err := svc.CheckFeature(c.Request.Context(), tenantID, featureKey)
		if err != nil {
			ginutil.ServerErr(c, "entitlement_unavailable")
			return
		}
		for k, v := range core.RenderContract(d).Headers {
			c.Header(k, v)
		}
		c.JSON(http.StatusOK, gin.H{
			"entitled":        d.IsEntitled,
			"billing_state":   string(d.BillingState),
			"plan_id":         d.PlanID,
			"reason":          d.Reason,
			"action_required": string(d.ActionRequired),
			"code":            d.Code,
		})
	}
}
