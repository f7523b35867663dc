package core

import (
	"fmt"
	"time"

	"github.com/open-rails/entitlekit/plans"
)

// Evaluator applies the billing-state × category × method matrix. It is a
// pure function over immutable inputs: no I/O, no side effects, safe to
// call concurrently from any number of goroutines. Audit emission belongs
// to the caller, driven by the returned Decision.
type Evaluator struct {
	plans *plans.Snapshot
}

// NewEvaluator builds an evaluator over the given plan snapshot. The
// snapshot only matters for feature-keyed checks; the category matrix is
// plan-independent.
func NewEvaluator(ps *plans.Snapshot) *Evaluator {
	return &Evaluator{plans: ps}
}

// Evaluate decides whether the tenant may use the category via the HTTP
// method, given the resolved billing state and an optional override.
//
// Priority order: an unexpired override for the pair bypasses the matrix
// entirely, including for expired billing state. An override whose expiry
// has passed is treated as absent.
func (e *Evaluator) Evaluate(tenantID string, category PremiumCategory, method string, rs ResolvedState, override *Override, now time.Time) Decision {
	if override.Active(now) {
		return Decision{
			IsEntitled:      true,
			BillingState:    rs.BillingState,
			Category:        category,
			PlanID:          rs.PlanID,
			Reason:          "override",
			ActionRequired:  ActionNone,
			OverrideApplied: true,
		}
	}

	d := Decision{
		BillingState:   rs.BillingState,
		Category:       category,
		PlanID:         rs.PlanID,
		ActionRequired: ActionNone,
	}
	isWrite := IsWriteMethod(method)
	premium := category.IsPremium()

	switch rs.BillingState {
	case BillingActive:
		d.IsEntitled = true

	case BillingPastDue:
		// Never denies; flags degraded access and asks for a payment update.
		d.IsEntitled = true
		d.IsDegradedAccess = true
		d.ActionRequired = ActionUpdatePayment

	case BillingGracePeriod:
		remaining := rs.GracePeriodRemainingDays
		d.GracePeriodRemainingDays = &remaining
		d.ActionRequired = ActionUpdatePayment
		switch {
		case premium:
			d.Reason = "payment grace period active, premium features require payment update"
		case isWrite:
			d.Reason = "payment grace period active, account is read-only"
		default:
			d.IsEntitled = true
			d.IsDegradedAccess = true
		}

	case BillingCanceled:
		d.CurrentPeriodEnd = rs.CurrentPeriodEnd
		d.ActionRequired = ActionUpdatePayment
		if rs.WithinCanceledPeriod {
			switch {
			case premium:
				d.Reason = "subscription canceled, premium features require an active subscription"
			case isWrite:
				d.Reason = "subscription canceled, account is read-only until period end"
			default:
				d.IsEntitled = true
				d.IsDegradedAccess = true
			}
		} else {
			// Past the paid period: behaves exactly like expired.
			switch {
			case premium:
				d.Reason = "subscription canceled and billing period ended"
				d.Code = CodeBillingExpired
			case isWrite:
				d.Reason = "subscription canceled and billing period ended, account is read-only"
			default:
				d.IsEntitled = true
				d.IsDegradedAccess = true
			}
		}

	case BillingExpired:
		d.ActionRequired = ActionUpdatePayment
		switch {
		case premium:
			d.Reason = "subscription has expired, premium features require an active subscription"
			d.Code = CodeBillingExpired
		case isWrite:
			d.Reason = "subscription has expired, account is read-only"
		default:
			d.IsEntitled = true
			d.IsDegradedAccess = true
		}

	default: // BillingNone
		// No subscription to anchor entitlement: deny everything.
		d.BillingState = BillingNone
		d.Reason = "no subscription found"
		d.ActionRequired = ActionUpgrade
	}

	return d
}

// CheckFeature gates a feature key on billing state first and the
// tenant's plan second: expired, canceled-past-period and none deny
// outright, while the states that still carry entitlement (active,
// past_due, grace, canceled within the paid period) additionally require
// the plan to carry the feature. An unexpired override for the key grants
// it regardless.
func (e *Evaluator) CheckFeature(tenantID, featureKey string, rs ResolvedState, override *Override, now time.Time) Decision {
	if override.Active(now) {
		return Decision{
			IsEntitled:      true,
			BillingState:    rs.BillingState,
			Category:        CategoryOther,
			PlanID:          rs.PlanID,
			Reason:          "override",
			ActionRequired:  ActionNone,
			OverrideApplied: true,
		}
	}

	d := Decision{
		BillingState:   rs.BillingState,
		Category:       CategoryOther,
		PlanID:         rs.PlanID,
		ActionRequired: ActionNone,
	}

	// Feature entitlement is stricter than the read-only matrix: a lapsed
	// subscription keeps its degraded reads but is entitled to no feature,
	// whatever the plan carried.
	switch rs.BillingState {
	case BillingActive:
		d.IsEntitled = true

	case BillingPastDue:
		d.IsEntitled = true
		d.IsDegradedAccess = true
		d.ActionRequired = ActionUpdatePayment

	case BillingGracePeriod:
		remaining := rs.GracePeriodRemainingDays
		d.GracePeriodRemainingDays = &remaining
		d.IsEntitled = true
		d.IsDegradedAccess = true
		d.ActionRequired = ActionUpdatePayment

	case BillingCanceled:
		d.CurrentPeriodEnd = rs.CurrentPeriodEnd
		d.ActionRequired = ActionUpdatePayment
		if !rs.WithinCanceledPeriod {
			d.Reason = "subscription canceled and billing period ended"
			d.Code = CodeBillingExpired
			return d
		}
		d.IsEntitled = true
		d.IsDegradedAccess = true

	case BillingExpired:
		d.ActionRequired = ActionUpdatePayment
		d.Reason = "subscription has expired"
		d.Code = CodeBillingExpired
		return d

	default: // BillingNone
		d.BillingState = BillingNone
		d.Reason = "no subscription found"
		d.ActionRequired = ActionUpgrade
		return d
	}

	if e.plans != nil && !e.plans.PlanHasFeature(rs.PlanID, featureKey) {
		d.IsEntitled = false
		d.IsDegradedAccess = false
		d.ActionRequired = ActionUpgrade
		if required := e.plans.CheapestPlanWithFeature(featureKey); required != "" {
			d.Reason = fmt.Sprintf("feature %q requires plan %q", featureKey, required)
		} else {
			d.Reason = fmt.Sprintf("feature %q is not available on the current plan", featureKey)
		}
	}
	return d
}
