// Package ginutil holds shared response helpers and rate-limit plumbing
// for the gin adapter.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Rate limit bucket names used by the adapter's endpoints.
const (
	RLOverrideWrite    = "override_write"
	RLOverrideRead     = "override_read"
	RLEntitlementCheck = "entitlement_check"
)

// RateLimiter is the adapter's limiter seam. Both the in-memory and the
// Redis limiter satisfy it; a nil limiter allows everything.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

// AllowNamed runs the limiter for the bucket, keyed by client IP. Limiter
// errors fail open: a broken limiter must not take down admin access.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ok, err := rl.AllowNamed(bucket, c.ClientIP())
	if err != nil {
		return true
	}
	return ok
}

func BadRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code})
}

func Unauthorized(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
}

func Forbidden(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code})
}

func NotFound(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": code})
}

func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func ServerErr(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": code})
}
