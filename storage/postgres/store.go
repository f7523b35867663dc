// Package pgstore provides pgx-backed stores for the entitlement engine:
// the subscription read model owned by the billing-sync collaborator and
// the override registry.
package pgstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-rails/entitlekit/core"
)

// SubscriptionStore reads subscription snapshots. The engine never writes
// this table; billing-sync owns it.
type SubscriptionStore struct {
	pg     *pgxpool.Pool
	schema string
}

// NewSubscriptionStore creates a store over the given schema (default
// "billing").
func NewSubscriptionStore(pg *pgxpool.Pool, schema string) *SubscriptionStore {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "billing"
	}
	return &SubscriptionStore{pg: pg, schema: s}
}

func (s *SubscriptionStore) table() string { return s.schema + ".subscriptions" }

// Latest returns the newest subscription record for the tenant, or nil
// when the tenant has none.
func (s *SubscriptionStore) Latest(ctx context.Context, tenantID string) (*core.Subscription, error) {
	if s.pg == nil || strings.TrimSpace(tenantID) == "" {
		return nil, nil
	}
	var sub core.Subscription
	err := s.pg.QueryRow(ctx, `SELECT tenant_id, plan_id, status, current_period_end, grace_period_ends_on, canceled_at
		FROM `+s.table()+` WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT 1`, tenantID).
		Scan(&sub.TenantID, &sub.PlanID, &sub.Status, &sub.CurrentPeriodEnd, &sub.GracePeriodEndsOn, &sub.CanceledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// OverrideStore is the postgres core.OverrideStore. Uniqueness on
// (tenant_id, feature_key) is enforced by the table's constraint; upsert
// replaces in place. Expired rows are never deleted here.
type OverrideStore struct {
	pg     *pgxpool.Pool
	schema string
}

// NewOverrideStore creates a store over the given schema (default
// "entitlements").
func NewOverrideStore(pg *pgxpool.Pool, schema string) *OverrideStore {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "entitlements"
	}
	return &OverrideStore{pg: pg, schema: s}
}

func (s *OverrideStore) table() string { return s.schema + ".entitlement_overrides" }

func (s *OverrideStore) Upsert(ctx context.Context, in core.OverrideInput) (core.Override, bool, error) {
	if s.pg == nil {
		return core.Override{}, false, errors.New("pgstore: no pool")
	}
	var ov core.Override
	var created bool
	// xmax=0 distinguishes a fresh insert from a conflict-update.
	err := s.pg.QueryRow(ctx, `INSERT INTO `+s.table()+` (id, tenant_id, feature_key, expires_at, reason, actor_id, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (tenant_id, feature_key)
		DO UPDATE SET expires_at=EXCLUDED.expires_at, reason=EXCLUDED.reason, actor_id=EXCLUDED.actor_id, swept_at=NULL, updated_at=NOW()
		RETURNING id, tenant_id, feature_key, expires_at, reason, actor_id, created_at, (xmax = 0)`,
		in.TenantID, in.FeatureKey, in.ExpiresAt, in.Reason, in.ActorID).
		Scan(&ov.ID, &ov.TenantID, &ov.FeatureKey, &ov.ExpiresAt, &ov.Reason, &ov.ActorID, &ov.CreatedAt, &created)
	if err != nil {
		return core.Override{}, false, err
	}
	return ov, created, nil
}

func (s *OverrideStore) GetActive(ctx context.Context, tenantID, featureKey string, now time.Time) (*core.Override, error) {
	if s.pg == nil {
		return nil, nil
	}
	var ov core.Override
	err := s.pg.QueryRow(ctx, `SELECT id, tenant_id, feature_key, expires_at, reason, actor_id, created_at
		FROM `+s.table()+` WHERE tenant_id=$1 AND feature_key=$2 AND expires_at > $3`,
		tenantID, featureKey, now).
		Scan(&ov.ID, &ov.TenantID, &ov.FeatureKey, &ov.ExpiresAt, &ov.Reason, &ov.ActorID, &ov.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ov, nil
}

func (s *OverrideStore) List(ctx context.Context, tenantID string) ([]core.Override, error) {
	if s.pg == nil {
		return nil, nil
	}
	rows, err := s.pg.Query(ctx, `SELECT id, tenant_id, feature_key, expires_at, reason, actor_id, created_at
		FROM `+s.table()+` WHERE tenant_id=$1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOverrides(rows)
}

func (s *OverrideStore) Expire(ctx context.Context, tenantID, featureKey string, now time.Time) (bool, error) {
	if s.pg == nil {
		return false, errors.New("pgstore: no pool")
	}
	tag, err := s.pg.Exec(ctx, `UPDATE `+s.table()+` SET expires_at=$3, updated_at=NOW()
		WHERE tenant_id=$1 AND feature_key=$2 AND expires_at > $3`, tenantID, featureKey, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *OverrideStore) ClaimExpired(ctx context.Context, now time.Time) ([]core.Override, error) {
	if s.pg == nil {
		return nil, nil
	}
	// Claim-and-return in one statement so concurrent sweepers never
	// report the same lapse twice.
	rows, err := s.pg.Query(ctx, `UPDATE `+s.table()+` SET swept_at=NOW()
		WHERE expires_at <= $1 AND swept_at IS NULL
		RETURNING id, tenant_id, feature_key, expires_at, reason, actor_id, created_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOverrides(rows)
}

func scanOverrides(rows pgx.Rows) ([]core.Override, error) {
	var out []core.Override
	for rows.Next() {
		var ov core.Override
		if err := rows.Scan(&ov.ID, &ov.TenantID, &ov.FeatureKey, &ov.ExpiresAt, &ov.Reason, &ov.ActorID, &ov.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}
