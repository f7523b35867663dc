package core

import "time"

// ActionRequired tells the client what to do about a restricted state.
type ActionRequired string

const (
	ActionNone           ActionRequired = "none"
	ActionUpdatePayment  ActionRequired = "update_payment"
	ActionUpgrade        ActionRequired = "upgrade"
	ActionContactSupport ActionRequired = "contact_support"
)

// Machine-readable denial codes.
const (
	CodeBillingExpired = "BILLING_EXPIRED"
)

// Decision is the pure output of one policy evaluation. It is recomputed on
// every call and never cached as authoritative state. Two evaluations with
// identical inputs produce identical decisions.
type Decision struct {
	IsEntitled   bool            `json:"is_entitled"`
	BillingState BillingState    `json:"billing_state"`
	Category     PremiumCategory `json:"category"`
	PlanID       string          `json:"plan_id,omitempty"`
	Reason       string          `json:"reason,omitempty"`

	ActionRequired   ActionRequired `json:"action_required"`
	IsDegradedAccess bool           `json:"is_degraded_access"`

	// GracePeriodRemainingDays is set only while in grace_period.
	GracePeriodRemainingDays *int `json:"grace_period_remaining_days,omitempty"`

	// Code is the machine-readable denial code, set only on hard denies.
	Code string `json:"code,omitempty"`

	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`

	// OverrideApplied marks a grant that bypassed the matrix.
	OverrideApplied bool `json:"override_applied,omitempty"`
}
