package core

import (
	"context"
	"time"
)

// Audit event types emitted by the engine.
const (
	EventDenied             = "entitlement.denied"
	EventDegradedAccessUsed = "entitlement.degraded_access_used"
	EventOverrideGranted    = "entitlement.override.granted"
	EventOverrideCreated    = "entitlement.override.created"
	EventOverrideUpdated    = "entitlement.override.updated"
	EventOverrideRevoked    = "entitlement.override.revoked"
	EventOverrideExpired    = "entitlement.override.expired_ignored"
)

// AuditEvent is one decision or governance event for the external log.
type AuditEvent struct {
	Type         string         `json:"type"`
	TenantID     string         `json:"tenant_id"`
	ActorID      string         `json:"actor_id,omitempty"`
	FeatureKey   string         `json:"feature_key,omitempty"`
	Category     string         `json:"category,omitempty"`
	BillingState string         `json:"billing_state,omitempty"`
	PlanID       string         `json:"plan_id,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AuditEmitter receives decision and governance events for external
// logging. Implementations must be non-blocking and best-effort:
// duplicates are tolerated downstream, and a failing sink must never
// block or alter a decision.
type AuditEmitter interface {
	Emit(ctx context.Context, ev AuditEvent)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, AuditEvent) {}
