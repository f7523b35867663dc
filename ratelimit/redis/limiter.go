// Package redislimiter is the shared sliding-window rate limiter for the
// admin override surface, backed by Redis ZSETs so the window holds
// across nodes.
package redislimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit caps requests per window for one named bucket.
type Limit struct {
	Max    int
	Window time.Duration
}

// DefaultLimits mirrors the in-memory limiter's buckets.
var DefaultLimits = map[string]Limit{
	"override_write":    {Max: 30, Window: time.Minute},
	"override_read":     {Max: 120, Window: time.Minute},
	"entitlement_check": {Max: 600, Window: time.Minute},
	"default":           {Max: 100, Window: time.Minute},
}

// Limiter scores request instants into a per-(bucket, key) ZSET and
// counts members inside the window.
type Limiter struct {
	rdb    *redis.Client
	limits map[string]Limit
	prefix string
}

// New builds a limiter on rdb; nil limits uses DefaultLimits.
func New(rdb *redis.Client, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Limiter{rdb: rdb, limits: limits, prefix: "entitlements:rl:"}
}

func (l *Limiter) limitFor(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Max: 100, Window: time.Minute}
}

// AllowNamed reports whether key may proceed in bucket. A nil client
// allows everything so the limiter can be left unwired in development.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	ctx := context.Background()
	lim := l.limitFor(bucket)
	nowMs := time.Now().UnixMilli()
	cutoff := nowMs - lim.Window.Milliseconds()
	zkey := l.prefix + bucket + ":" + key

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, zkey, redis.Z{Score: float64(nowMs), Member: nowMs})
	pipe.ZRemRangeByScore(ctx, zkey, "0", fmt.Sprintf("%d", cutoff))
	countCmd := pipe.ZCard(ctx, zkey)
	pipe.Expire(ctx, zkey, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}
	if count > int64(lim.Max) {
		// Remove the optimistically added member so the denial does not
		// count against the window.
		l.rdb.ZRem(ctx, zkey, nowMs)
		return false, nil
	}
	return true, nil
}
