package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/entitlekit/metrics"
	"github.com/open-rails/entitlekit/plans"
)

// SubscriptionSource reads the latest subscription snapshot for a tenant
// from the system of record. A tenant without a record returns (nil, nil);
// that is a valid resolved state, not an error.
type SubscriptionSource interface {
	Latest(ctx context.Context, tenantID string) (*Subscription, error)
}

// Snapshot bundles the per-tenant evaluation inputs so the hot path reads
// shared state exactly once.
type Snapshot struct {
	TenantID     string        `json:"tenant_id"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Overrides    []Override    `json:"overrides,omitempty"`
}

// SnapshotCache keeps evaluation inputs close to the request path so
// evaluation never blocks on the system of record. Implementations are
// best-effort: a failing cache degrades to source reads, never to denial.
type SnapshotCache interface {
	Get(ctx context.Context, tenantID string) (*Snapshot, bool, error)
	Set(ctx context.Context, snap *Snapshot, ttl time.Duration) error
	Del(ctx context.Context, tenantID string) error
}

// DefaultSnapshotTTL bounds how stale a cached snapshot may get when no
// override expiry clamps it sooner.
const DefaultSnapshotTTL = time.Hour

// ServiceConfig wires a Service. Subscriptions, Overrides and Plans are
// required; everything else has a working default.
type ServiceConfig struct {
	Subscriptions SubscriptionSource
	Overrides     OverrideStore
	Plans         *plans.Loader
	Cache         SnapshotCache // optional
	Audit         AuditEmitter  // optional, defaults to NopEmitter
	Logger        *logrus.Logger
	SnapshotTTL   time.Duration
	Now           func() time.Time // test seam
}

// Service is the engine's orchestration layer: it assembles evaluation
// inputs (cache-through), runs the pure evaluator, emits audit events from
// the resulting decision, and owns the override administration operations.
type Service struct {
	subs        SubscriptionSource
	overrides   OverrideStore
	planLoader  *plans.Loader
	cache       SnapshotCache
	audit       AuditEmitter
	log         *logrus.Logger
	snapshotTTL time.Duration
	now         func() time.Time
}

// NewService builds a Service from the config.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		subs:        cfg.Subscriptions,
		overrides:   cfg.Overrides,
		planLoader:  cfg.Plans,
		cache:       cfg.Cache,
		audit:       cfg.Audit,
		log:         cfg.Logger,
		snapshotTTL: cfg.SnapshotTTL,
		now:         cfg.Now,
	}
	if s.audit == nil {
		s.audit = NopEmitter{}
	}
	if s.log == nil {
		s.log = logrus.New()
	}
	if s.snapshotTTL <= 0 {
		s.snapshotTTL = DefaultSnapshotTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// EvaluateRequest decides whether the tenant may use the category via the
// HTTP method. It fails closed: if evaluation inputs cannot be assembled
// the error is returned and no decision is produced.
func (s *Service) EvaluateRequest(ctx context.Context, tenantID string, category PremiumCategory, method string) (Decision, error) {
	now := s.now().UTC()

	snap, err := s.snapshot(ctx, tenantID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"category":  category,
		}).WithError(err).Error("entitlement evaluation failed")
		return Decision{}, err
	}

	rs := ResolveBillingState(snap.Subscription, now)
	override := activeOverride(snap.Overrides, string(category), now)

	d := s.evaluator().Evaluate(tenantID, category, method, rs, override, now)
	s.afterDecision(ctx, tenantID, d, now)
	return d, nil
}

// CheckFeature gates a feature key on billing state, overrides and the
// tenant's plan.
func (s *Service) CheckFeature(ctx context.Context, tenantID, featureKey string) (Decision, error) {
	now := s.now().UTC()

	snap, err := s.snapshot(ctx, tenantID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"tenant_id":   tenantID,
			"feature_key": featureKey,
		}).WithError(err).Error("feature entitlement check failed")
		return Decision{}, err
	}

	rs := ResolveBillingState(snap.Subscription, now)
	override := activeOverride(snap.Overrides, featureKey, now)

	d := s.evaluator().CheckFeature(tenantID, featureKey, rs, override, now)
	s.afterDecision(ctx, tenantID, d, now)
	return d, nil
}

// CreateOrReplaceOverride validates and persists an override, invalidates
// the tenant's snapshot (overrides are security-relevant; no stale-read
// window), and emits the issuance audit event.
func (s *Service) CreateOrReplaceOverride(ctx context.Context, in OverrideInput) (Override, error) {
	now := s.now().UTC()
	if err := in.Validate(now); err != nil {
		return Override{}, err
	}

	ov, created, err := s.overrides.Upsert(ctx, in)
	if err != nil {
		return Override{}, err
	}
	s.invalidate(ctx, in.TenantID)

	evType := EventOverrideUpdated
	if created {
		evType = EventOverrideCreated
	}
	s.audit.Emit(ctx, AuditEvent{
		Type:       evType,
		TenantID:   ov.TenantID,
		ActorID:    ov.ActorID,
		FeatureKey: ov.FeatureKey,
		Reason:     ov.Reason,
		OccurredAt: now,
		Metadata:   map[string]any{"expires_at": ov.ExpiresAt.Format(time.RFC3339)},
	})
	return ov, nil
}

// RevokeOverride stamps the override's expiry to now. The row stays in
// storage for audit replay; it is simply inert from here on.
func (s *Service) RevokeOverride(ctx context.Context, tenantID, featureKey, actorID string) (bool, error) {
	now := s.now().UTC()
	revoked, err := s.overrides.Expire(ctx, tenantID, featureKey, now)
	if err != nil {
		return false, err
	}
	if revoked {
		s.invalidate(ctx, tenantID)
		s.audit.Emit(ctx, AuditEvent{
			Type:       EventOverrideRevoked,
			TenantID:   tenantID,
			ActorID:    actorID,
			FeatureKey: featureKey,
			OccurredAt: now,
		})
	}
	return revoked, nil
}

// ListOverrides returns all overrides for the tenant, expired rows
// included.
func (s *Service) ListOverrides(ctx context.Context, tenantID string) ([]Override, error) {
	return s.overrides.List(ctx, tenantID)
}

// HandleBillingSync drops the tenant's cached snapshot after the billing
// collaborator applied a webhook, so the next evaluation sees fresh state.
func (s *Service) HandleBillingSync(ctx context.Context, tenantID string) {
	s.invalidate(ctx, tenantID)
}

// ReloadPlans re-reads the plan table. Explicit operation; never ambient.
func (s *Service) ReloadPlans() error {
	return s.planLoader.Reload()
}

// Overrides exposes the store for the sweep job.
func (s *Service) Overrides() OverrideStore { return s.overrides }

// Audit exposes the emitter for collaborators that log through the engine.
func (s *Service) Audit() AuditEmitter { return s.audit }

// InvalidateTenant drops the tenant's cached snapshot.
func (s *Service) InvalidateTenant(ctx context.Context, tenantID string) {
	s.invalidate(ctx, tenantID)
}

func (s *Service) evaluator() *Evaluator {
	var snap *plans.Snapshot
	if s.planLoader != nil {
		snap = s.planLoader.Current()
	}
	return NewEvaluator(snap)
}

// snapshot reads evaluation inputs through the cache. Cache failures are
// logged and degrade to a source read; source failures fail closed.
func (s *Service) snapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	if s.cache != nil {
		snap, ok, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.log.WithField("tenant_id", tenantID).WithError(err).Warn("snapshot cache read failed")
		}
		metrics.RecordCacheLookup(ok)
		if ok {
			return snap, nil
		}
	}

	sub, err := s.subs.Latest(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	ovs, err := s.overrides.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{TenantID: tenantID, Subscription: sub, Overrides: ovs}

	if s.cache != nil {
		ttl := snapshotTTL(snap, s.now().UTC(), s.snapshotTTL)
		if err := s.cache.Set(ctx, snap, ttl); err != nil {
			s.log.WithField("tenant_id", tenantID).WithError(err).Warn("snapshot cache write failed")
		}
	}
	return snap, nil
}

func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, tenantID); err != nil {
		s.log.WithField("tenant_id", tenantID).WithError(err).Warn("snapshot cache invalidation failed")
	}
}

// afterDecision emits audit events and metrics derived from the decision.
// Emission is fire-and-forget and never alters the decision path.
func (s *Service) afterDecision(ctx context.Context, tenantID string, d Decision, now time.Time) {
	metrics.RecordDecision(string(d.BillingState), string(d.Category), d.IsEntitled, d.IsDegradedAccess)

	switch {
	case d.OverrideApplied:
		metrics.RecordOverrideGrant()
		s.audit.Emit(ctx, AuditEvent{
			Type:         EventOverrideGranted,
			TenantID:     tenantID,
			Category:     string(d.Category),
			BillingState: string(d.BillingState),
			PlanID:       d.PlanID,
			OccurredAt:   now,
		})
	case !d.IsEntitled:
		if d.Code != "" {
			metrics.RecordHardDenial(d.Code)
		}
		s.audit.Emit(ctx, AuditEvent{
			Type:         EventDenied,
			TenantID:     tenantID,
			Category:     string(d.Category),
			BillingState: string(d.BillingState),
			PlanID:       d.PlanID,
			Reason:       d.Reason,
			OccurredAt:   now,
		})
	case d.IsDegradedAccess:
		s.audit.Emit(ctx, AuditEvent{
			Type:         EventDegradedAccessUsed,
			TenantID:     tenantID,
			Category:     string(d.Category),
			BillingState: string(d.BillingState),
			PlanID:       d.PlanID,
			OccurredAt:   now,
		})
	}
}

// activeOverride picks the unexpired override matching the feature key.
func activeOverride(ovs []Override, featureKey string, now time.Time) *Override {
	for i := range ovs {
		if ovs[i].FeatureKey == featureKey && ovs[i].Active(now) {
			return &ovs[i]
		}
	}
	return nil
}

// snapshotTTL clamps the cache TTL to the earliest future override expiry,
// so an expiring override never outlives its cached grant by more than a
// moment.
func snapshotTTL(snap *Snapshot, now time.Time, def time.Duration) time.Duration {
	ttl := def
	for i := range snap.Overrides {
		exp := snap.Overrides[i].ExpiresAt
		if exp.After(now) {
			if d := exp.Sub(now); d < ttl {
				ttl = d
			}
		}
	}
	return ttl
}
