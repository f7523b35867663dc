// Package entgin mounts the entitlement engine on gin: an enforcement
// middleware that stamps the billing headers and turns hard denials into
// 402 responses, an admin token gate for the override surface, and the
// override handlers.
package entgin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/entitlekit/adapters/ginutil"
	"github.com/open-rails/entitlekit/core"
)

// EnforceConfig wires the enforcement middleware. Service is required.
type EnforceConfig struct {
	Service *core.Service

	// TenantID overrides tenant resolution; the default reads the context
	// value set by ginutil.SetTenantID, then the X-Tenant-ID header.
	TenantID func(c *gin.Context) string

	// SkipPrefixes lists path prefixes exempt from enforcement. Health
	// probes and billing provider webhooks must stay reachable whatever
	// the tenant's billing state.
	SkipPrefixes []string

	Logger *logrus.Logger
}

// DefaultSkipPrefixes exempts liveness probes and billing webhooks.
var DefaultSkipPrefixes = []string{"/health", "/webhooks/billing"}

// Enforce evaluates the tenant's entitlement for every request and binds
// the decision to the response: billing headers on every evaluated
// response, 402 with the machine-readable body on a hard denial.
//
// Evaluation failures fail closed with 503: a tenant whose billing state
// cannot be determined gets no premium access, but the response makes
// clear the denial is operational, not a billing decision.
func Enforce(cfg EnforceConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	tenantID := cfg.TenantID
	if tenantID == nil {
		tenantID = ginutil.TenantID
	}
	skip := cfg.SkipPrefixes
	if skip == nil {
		skip = DefaultSkipPrefixes
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range skip {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		tid := tenantID(c)
		if tid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_unresolved"})
			return
		}

		d, err := cfg.Service.EvaluateRequest(c.Request.Context(), tid, requestCategory(c), c.Request.Method)
		if err != nil {
			log.WithFields(logrus.Fields{
				"tenant_id": tid,
				"path":      path,
			}).WithError(err).Error("entitlement evaluation failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "entitlement_unavailable"})
			return
		}

		contract := core.RenderContract(d)
		for k, v := range contract.Headers {
			c.Header(k, v)
		}

		if d.IsEntitled {
			c.Next()
			return
		}
		if contract.Body != nil {
			c.AbortWithStatusJSON(contract.Status, contract.Body)
			return
		}
		c.AbortWithStatusJSON(contract.Status, gin.H{
			"error":         "entitlement_denied",
			"billing_state": string(d.BillingState),
			"category":      string(d.Category),
			"reason":        d.Reason,
		})
	}
}
