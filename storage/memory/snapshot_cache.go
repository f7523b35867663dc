package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/open-rails/entitlekit/core"
)

// SnapshotCache is an in-memory core.SnapshotCache with per-entry TTL.
// It is the no-infra fallback when Redis is unavailable, and the test
// double. A background goroutine prunes expired entries.
type SnapshotCache struct {
	mu     sync.Mutex
	data   map[string]snapshotItem
	closed chan struct{}
	once   sync.Once
}

type snapshotItem struct {
	snap *core.Snapshot
	exp  time.Time
}

// NewSnapshotCache creates the cache and starts its cleanup loop.
func NewSnapshotCache() *SnapshotCache {
	c := &SnapshotCache{
		data:   make(map[string]snapshotItem),
		closed: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *SnapshotCache) Get(_ context.Context, tenantID string) (*core.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.data[tenantID]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(it.exp) {
		delete(c.data, tenantID)
		return nil, false, nil
	}
	return it.snap, true, nil
}

func (c *SnapshotCache) Set(_ context.Context, snap *core.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = core.DefaultSnapshotTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[snap.TenantID] = snapshotItem{snap: snap, exp: time.Now().Add(ttl)}
	return nil
}

func (c *SnapshotCache) Del(_ context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, tenantID)
	return nil
}

func (c *SnapshotCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.closed:
			return
		}
	}
}

func (c *SnapshotCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, it := range c.data {
		if now.After(it.exp) {
			delete(c.data, k)
		}
	}
}

// Close stops the cleanup goroutine.
func (c *SnapshotCache) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
