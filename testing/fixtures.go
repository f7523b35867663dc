// Package enttest provides fixtures for exercising the entitlement engine
// in tests: canned subscriptions, a fixed clock, and a recording audit
// emitter.
package enttest

import (
	"context"
	"sync"
	"time"

	"github.com/open-rails/entitlekit/core"
)

// Now is a fixed instant for deterministic tests.
var Now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// Clock returns a core.ServiceConfig-compatible now func pinned to t.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ActiveSubscription returns an active subscription for the tenant.
func ActiveSubscription(tenantID, planID string) *core.Subscription {
	end := Now.Add(30 * 24 * time.Hour)
	return &core.Subscription{
		TenantID:         tenantID,
		PlanID:           planID,
		Status:           "active",
		CurrentPeriodEnd: &end,
	}
}

// GraceSubscription returns a frozen subscription whose grace window ends
// at the given instant.
func GraceSubscription(tenantID, planID string, graceEndsOn time.Time) *core.Subscription {
	return &core.Subscription{
		TenantID:          tenantID,
		PlanID:            planID,
		Status:            "frozen",
		GracePeriodEndsOn: &graceEndsOn,
	}
}

// CanceledSubscription returns a canceled subscription with the given
// period end.
func CanceledSubscription(tenantID, planID string, periodEnd time.Time) *core.Subscription {
	canceledAt := Now.Add(-24 * time.Hour)
	return &core.Subscription{
		TenantID:         tenantID,
		PlanID:           planID,
		Status:           "canceled",
		CurrentPeriodEnd: &periodEnd,
		CanceledAt:       &canceledAt,
	}
}

// ExpiredSubscription returns an expired subscription.
func ExpiredSubscription(tenantID, planID string) *core.Subscription {
	return &core.Subscription{TenantID: tenantID, PlanID: planID, Status: "expired"}
}

// RecordingEmitter captures emitted audit events for assertions.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []core.AuditEvent
}

func (r *RecordingEmitter) Emit(_ context.Context, ev core.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything emitted so far.
func (r *RecordingEmitter) Events() []core.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards everything emitted so far.
func (r *RecordingEmitter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Types returns the emitted event types in order.
func (r *RecordingEmitter) Types() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}
