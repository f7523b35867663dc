package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/open-rails/entitlekit/adapters/ginutil"
	"github.com/open-rails/entitlekit/core"
)

// HandleOverridePUT creates or replaces the override for
// (tenant_id, feature_key). The body carries the feature key, a mandatory
// future expiry and a reason; the acting admin comes from the auth gate.
func HandleOverridePUT(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type overrideReq struct {
		FeatureKey string    `json:"feature_key" binding:"required"`
		ExpiresAt  time.Time `json:"expires_at" binding:"required"`
		Reason     string    `json:"reason" binding:"required"`
	}
	return func(c *gin.Context) {
		tenantID := c.Param("tenant_id")
		if tenantID == "" {
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

		var req overrideReq
		if err := c.ShouldBindJSON(&req); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "invalid_request",
					"field": verrs[0].Field(),
				})
				return
			}
			ginutil.BadRequest(c, "invalid_request")
			return
		}

		ov, err := svc.CreateOrReplaceOverride(c.Request.Context(), core.OverrideInput{
			TenantID:   tenantID,
			FeatureKey: req.FeatureKey,
			ExpiresAt:  req.ExpiresAt,
			Reason:     req.Reason,
			ActorID:    actor.ID,
		})
		if err != nil {
			var inv *core.InvalidOverrideError
			if errors.As(err, &inv) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error":  "invalid_override",
					"field":  inv.Field,
					"detail": inv.Detail,
				})
				return
			}
			ginutil.ServerErr(c, "failed_to_save")
			return
		}
		c.JSON(http.StatusOK, gin.H{"override": ov})
	}
}
