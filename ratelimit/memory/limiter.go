// Package memorylimiter is a single-node sliding-window rate limiter for
// the admin override surface. It is the fallback when Redis is not
// deployed; multi-node installations should use the Redis limiter so the
// window is shared.
package memorylimiter

import (
	"fmt"
	"sync"
	"time"
)

// Limit caps requests per window for one named bucket.
type Limit struct {
	Max    int
	Window time.Duration
}

// DefaultLimits covers the engine's admin and decision endpoints.
// Override writes are deliberately tight: they are rare, human-initiated
// operations and every one invalidates a tenant snapshot.
var DefaultLimits = map[string]Limit{
	"override_write":    {Max: 30, Window: time.Minute},
	"override_read":     {Max: 120, Window: time.Minute},
	"entitlement_check": {Max: 600, Window: time.Minute},
	"default":           {Max: 100, Window: time.Minute},
}

type window struct {
	// hits holds request instants in Unix ms, oldest first.
	hits []int64
}

// Limiter tracks sliding windows per (key, bucket) pair in memory.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	windows map[string]*window
	now     func() time.Time
}

// New builds a limiter with the given per-bucket limits; nil uses
// DefaultLimits.
func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Limiter{
		limits:  limits,
		windows: make(map[string]*window),
		now:     time.Now,
	}
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

// AllowNamed reports whether key may proceed in bucket. Denied attempts
// are not recorded, so a client hammering a full window does not extend
// its own penalty. Empty windows are dropped to bound memory.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}

	lim := l.limitFor(bucket)
	nowMs := l.now().UnixMilli()
	cutoff := nowMs - lim.Window.Milliseconds()
	wkey := bucket + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[wkey]
	if !ok {
		w = &window{}
		l.windows[wkey] = w
	}

	hits := w.hits
	i := 0
	for i < len(hits) && hits[i] < cutoff {
		i++
	}
	hits = hits[i:]

	if len(hits) >= lim.Max {
		w.hits = hits
		return false, nil
	}

	w.hits = append(hits, nowMs)
	return true, nil
}
