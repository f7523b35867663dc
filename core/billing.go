package core

import (
	"strings"
	"time"
)

// BillingState is the canonical lifecycle stage of a tenant's subscription.
// Raw provider statuses are mapped into this closed set at the boundary and
// never travel past the resolver.
type BillingState string

const (
	BillingActive      BillingState = "active"
	BillingPastDue     BillingState = "past_due"
	BillingGracePeriod BillingState = "grace_period"
	BillingCanceled    BillingState = "canceled"
	BillingExpired     BillingState = "expired"
	BillingNone        BillingState = "none"
)

// Subscription is a read-only snapshot produced by the billing-sync
// collaborator. The engine never mutates it.
type Subscription struct {
	TenantID          string     `json:"tenant_id"`
	PlanID            string     `json:"plan_id"`
	Status            string     `json:"status"` // raw provider status
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	GracePeriodEndsOn *time.Time `json:"grace_period_ends_on,omitempty"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`
}

// ResolvedState carries the billing state plus the time-boundary facts the
// evaluator needs. Pure derivation of (Subscription, now).
type ResolvedState struct {
	BillingState             BillingState
	PlanID                   string
	GracePeriodRemainingDays int // meaningful only in grace_period
	WithinCanceledPeriod     bool
	CurrentPeriodEnd         *time.Time
}

// ResolveBillingState derives the canonical billing state from a raw
// subscription record at the given instant. A nil subscription resolves to
// BillingNone. The expiry of a grace period is detected here at read time,
// so correctness never depends on an external scheduler.
func ResolveBillingState(sub *Subscription, now time.Time) ResolvedState {
	if sub == nil {
		return ResolvedState{BillingState: BillingNone}
	}

	rs := ResolvedState{
		PlanID:           sub.PlanID,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}

	switch strings.ToLower(strings.TrimSpace(sub.Status)) {
	case "active":
		rs.BillingState = BillingActive

	case "frozen", "grace_period":
		// Provider freezes the subscription on payment failure. With a
		// running grace window the tenant is in grace_period; once the
		// window has passed the subscription evaluates as expired.
		if sub.GracePeriodEndsOn != nil {
			if !now.After(*sub.GracePeriodEndsOn) {
				rs.BillingState = BillingGracePeriod
				rs.GracePeriodRemainingDays = ceilDays(sub.GracePeriodEndsOn.Sub(now))
			} else {
				rs.BillingState = BillingExpired
			}
		} else {
			rs.BillingState = BillingPastDue
		}

	case "past_due":
		rs.BillingState = BillingPastDue

	case "canceled", "cancelled":
		rs.BillingState = BillingCanceled
		if sub.CurrentPeriodEnd != nil && !now.After(*sub.CurrentPeriodEnd) {
			rs.WithinCanceledPeriod = true
		}

	case "expired", "declined":
		rs.BillingState = BillingExpired

	default:
		// pending or an unrecognized provider status: no entitlement anchor.
		rs.BillingState = BillingNone
		rs.PlanID = ""
	}

	return rs
}

// ceilDays rounds a positive duration up to whole days, never below zero.
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
