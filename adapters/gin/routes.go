package entgin

import (
	"github.com/gin-gonic/gin"

	"github.com/open-rails/entitlekit/adapters/gin/handlers"
	"github.com/open-rails/entitlekit/adapters/ginutil"
	"github.com/open-rails/entitlekit/core"
)

// MountAdmin registers the override administration surface under
// /admin/tenants/:tenant_id, gated by AdminAuth.
func MountAdmin(r gin.IRouter, svc *core.Service, verifier TokenVerifier, rl ginutil.RateLimiter) {
	grp := r.Group("/admin/tenants/:tenant_id", AdminAuth(verifier))
	grp.PUT("/overrides", handlers.HandleOverridePUT(svc, rl))
	grp.DELETE("/overrides/:feature_key", handlers.HandleOverrideDELETE(svc, rl))
	grp.GET("/overrides", handlers.HandleOverridesGET(svc, rl))
}

// MountCheck registers the read-only entitlement check endpoint. It sits
// inside the caller's own auth; it only needs the tenant resolvable.
func MountCheck(r gin.IRouter, svc *core.Service, rl ginutil.RateLimiter) {
	r.GET("/entitlements/check", handlers.HandleEntitlementCheckGET(svc, rl))
}
