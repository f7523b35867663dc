package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/entitlekit/core"
)

// OverrideStore is an in-memory core.OverrideStore for single-node use and
// tests. Rows are keyed by (tenant_id, feature_key); a new override for the
// same pair replaces the prior one. Expired rows are kept.
type OverrideStore struct {
	mu    sync.RWMutex
	rows  map[overrideKey]core.Override
	swept map[overrideKey]bool
}

type overrideKey struct {
	tenantID   string
	featureKey string
}

// NewOverrideStore creates an empty store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{
		rows:  make(map[overrideKey]core.Override),
		swept: make(map[overrideKey]bool),
	}
}

func (s *OverrideStore) Upsert(_ context.Context, in core.OverrideInput) (core.Override, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overrideKey{tenantID: in.TenantID, featureKey: in.FeatureKey}
	prev, existed := s.rows[key]

	ov := core.Override{
		ID:         uuid.New(),
		TenantID:   in.TenantID,
		FeatureKey: in.FeatureKey,
		ExpiresAt:  in.ExpiresAt,
		Reason:     in.Reason,
		ActorID:    in.ActorID,
		CreatedAt:  time.Now().UTC(),
	}
	if existed {
		ov.ID = prev.ID
		ov.CreatedAt = prev.CreatedAt
	}
	s.rows[key] = ov
	delete(s.swept, key)
	return ov, !existed, nil
}

func (s *OverrideStore) GetActive(_ context.Context, tenantID, featureKey string, now time.Time) (*core.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ov, ok := s.rows[overrideKey{tenantID: tenantID, featureKey: featureKey}]
	if !ok || !ov.ExpiresAt.After(now) {
		return nil, nil
	}
	out := ov
	return &out, nil
}

func (s *OverrideStore) List(_ context.Context, tenantID string) ([]core.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Override
	for key, ov := range s.rows {
		if key.tenantID == tenantID {
			out = append(out, ov)
		}
	}
	return out, nil
}

func (s *OverrideStore) Expire(_ context.Context, tenantID, featureKey string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overrideKey{tenantID: tenantID, featureKey: featureKey}
	ov, ok := s.rows[key]
	if !ok || !ov.ExpiresAt.After(now) {
		return false, nil
	}
	ov.ExpiresAt = now
	s.rows[key] = ov
	return true, nil
}

func (s *OverrideStore) ClaimExpired(_ context.Context, now time.Time) ([]core.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Override
	for key, ov := range s.rows {
		if !ov.ExpiresAt.After(now) && !s.swept[key] {
			s.swept[key] = true
			out = append(out, ov)
		}
	}
	return out, nil
}
