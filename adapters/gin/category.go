package entgin

import (
	"github.com/gin-gonic/gin"

	"github.com/open-rails/entitlekit/core"
)

const categoryKey = "entitlekit.category"

// RequireCategory tags every request on the route with an explicit
// premium category, overriding path inference in Enforce. Mount it before
// Enforce on routes whose paths do not name their category.
func RequireCategory(cat core.PremiumCategory) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(categoryKey, cat)
		c.Next()
	}
}

// requestCategory returns the tagged category if present, otherwise
// infers one from the request path.
func requestCategory(c *gin.Context) core.PremiumCategory {
	if v, ok := c.Get(categoryKey); ok {
		if cat, ok := v.(core.PremiumCategory); ok {
			return cat
		}
	}
	return core.CategoryFromPath(c.Request.URL.Path)
}
