package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/open-rails/entitlekit/core"
)

// SnapshotCache is the Redis core.SnapshotCache. Snapshots are JSON blobs
// under a tenant-keyed namespace; the caller supplies the TTL, already
// clamped to the earliest override expiry.
type SnapshotCache struct {
	rdb   *redis.Client
	keyNS string
}

// NewSnapshotCache creates a cache with the given key prefix (default
// "entitlements:snapshot:").
func NewSnapshotCache(rdb *redis.Client, keyPrefix string) *SnapshotCache {
	if keyPrefix == "" {
		keyPrefix = "entitlements:snapshot:"
	}
	return &SnapshotCache{rdb: rdb, keyNS: keyPrefix}
}

func (c *SnapshotCache) key(tenantID string) string { return c.keyNS + tenantID }

func (c *SnapshotCache) Get(ctx context.Context, tenantID string) (*core.Snapshot, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(tenantID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snap core.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, false, err
	}
	return &snap, true, nil
}

func (c *SnapshotCache) Set(ctx context.Context, snap *core.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = core.DefaultSnapshotTTL
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(snap.TenantID), b, ttl).Err()
}

func (c *SnapshotCache) Del(ctx context.Context, tenantID string) error {
	return c.rdb.Del(ctx, c.key(tenantID)).Err()
}
