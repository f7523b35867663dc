package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/entitlekit/plans"
)

func testPlans(t *testing.T) *plans.Snapshot {
	t.Helper()
	snap, err := plans.Parse([]byte(`{
		"plans": {
			"free":   {"features": [], "price_monthly_cents": 0},
			"pro":    {"features": ["exports", "ai"], "price_monthly_cents": 4900},
			"scale":  {"features": ["exports", "ai", "heavy_recompute"], "price_monthly_cents": 19900}
		}
	}`))
	if err != nil {
		t.Fatalf("parse plans: %v", err)
	}
	return snap
}

func resolved(state BillingState) ResolvedState {
	return ResolvedState{BillingState: state, PlanID: "pro"}
}

// The full enforcement matrix: billing state × premium/non-premium × method.
func TestEvaluate_Matrix(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	periodEnd := testNow.Add(5 * 24 * time.Hour)

	graceState := ResolvedState{BillingState: BillingGracePeriod, PlanID: "pro", GracePeriodRemainingDays: 2}
	canceledWithin := ResolvedState{BillingState: BillingCanceled, PlanID: "pro", WithinCanceledPeriod: true, CurrentPeriodEnd: &periodEnd}
	canceledPast := ResolvedState{BillingState: BillingCanceled, PlanID: "pro", CurrentPeriodEnd: &periodEnd}

	cases := []struct {
		name         string
		rs           ResolvedState
		category     PremiumCategory
		method       string
		wantEntitled bool
		wantDegraded bool
		wantAction   ActionRequired
		wantCode     string
	}{
		{"active premium", resolved(BillingActive), CategoryExports, "POST", true, false, ActionNone, ""},
		{"active other write", resolved(BillingActive), CategoryOther, "POST", true, false, ActionNone, ""},
		{"active other read", resolved(BillingActive), CategoryOther, "GET", true, false, ActionNone, ""},

		{"past_due premium", resolved(BillingPastDue), CategoryAI, "POST", true, true, ActionUpdatePayment, ""},
		{"past_due other write", resolved(BillingPastDue), CategoryOther, "POST", true, true, ActionUpdatePayment, ""},
		{"past_due other read", resolved(BillingPastDue), CategoryOther, "GET", true, true, ActionUpdatePayment, ""},

		{"grace premium read", graceState, CategoryExports, "GET", false, false, ActionUpdatePayment, ""},
		{"grace other write", graceState, CategoryOther, "POST", false, false, ActionUpdatePayment, ""},
		{"grace other read", graceState, CategoryOther, "GET", true, true, ActionUpdatePayment, ""},

		{"canceled within premium", canceledWithin, CategoryHeavyRecompute, "GET", false, false, ActionUpdatePayment, ""},
		{"canceled within other write", canceledWithin, CategoryOther, "POST", false, false, ActionUpdatePayment, ""},
		{"canceled within other read", canceledWithin, CategoryOther, "GET", true, true, ActionUpdatePayment, ""},

		{"canceled past premium", canceledPast, CategoryExports, "GET", false, false, ActionUpdatePayment, CodeBillingExpired},
		{"canceled past other write", canceledPast, CategoryOther, "POST", false, false, ActionUpdatePayment, ""},
		{"canceled past other read", canceledPast, CategoryOther, "GET", true, true, ActionUpdatePayment, ""},

		{"expired premium", resolved(BillingExpired), CategoryHeavyRecompute, "GET", false, false, ActionUpdatePayment, CodeBillingExpired},
		{"expired other write", resolved(BillingExpired), CategoryOther, "POST", false, false, ActionUpdatePayment, ""},
		{"expired other read", resolved(BillingExpired), CategoryOther, "GET", true, true, ActionUpdatePayment, ""},

		{"none premium", ResolvedState{BillingState: BillingNone}, CategoryExports, "GET", false, false, ActionUpgrade, ""},
		{"none other write", ResolvedState{BillingState: BillingNone}, CategoryOther, "POST", false, false, ActionUpgrade, ""},
		{"none other read", ResolvedState{BillingState: BillingNone}, CategoryOther, "GET", false, false, ActionUpgrade, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := ev.Evaluate("t1", tc.category, tc.method, tc.rs, nil, testNow)
			if d.IsEntitled != tc.wantEntitled {
				t.Errorf("entitled: expected %v, got %v (%+v)", tc.wantEntitled, d.IsEntitled, d)
			}
			if d.IsDegradedAccess != tc.wantDegraded {
				t.Errorf("degraded: expected %v, got %v", tc.wantDegraded, d.IsDegradedAccess)
			}
			if d.ActionRequired != tc.wantAction {
				t.Errorf("action: expected %s, got %s", tc.wantAction, d.ActionRequired)
			}
			if d.Code != tc.wantCode {
				t.Errorf("code: expected %q, got %q", tc.wantCode, d.Code)
			}
		})
	}
}

func TestEvaluate_GraceRemainingDaysCarried(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	rs := ResolvedState{BillingState: BillingGracePeriod, PlanID: "pro", GracePeriodRemainingDays: 2}
	d := ev.Evaluate("t1", CategoryAI, "GET", rs, nil, testNow)
	if d.GracePeriodRemainingDays == nil || *d.GracePeriodRemainingDays != 2 {
		t.Fatalf("expected 2 remaining days on decision, got %v", d.GracePeriodRemainingDays)
	}
}

func TestEvaluate_OverrideBypassesMatrix(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	ov := &Override{
		ID:         uuid.New(),
		TenantID:   "t1",
		FeatureKey: "exports",
		ExpiresAt:  testNow.Add(time.Hour),
	}

	// Entitled even when expired, the hardest state in the matrix.
	d := ev.Evaluate("t1", CategoryExports, "POST", resolved(BillingExpired), ov, testNow)
	if !d.IsEntitled {
		t.Fatal("override should grant access despite expired billing state")
	}
	if !d.OverrideApplied || d.Reason != "override" {
		t.Fatalf("expected override marker, got %+v", d)
	}
}

func TestEvaluate_ExpiredOverrideIsAbsent(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	ov := &Override{TenantID: "t1", FeatureKey: "exports", ExpiresAt: testNow.Add(-time.Minute)}

	d := ev.Evaluate("t1", CategoryExports, "GET", resolved(BillingExpired), ov, testNow)
	if d.IsEntitled {
		t.Fatal("expired override must behave as if absent")
	}
	if d.Code != CodeBillingExpired {
		t.Fatalf("expected %s, got %q", CodeBillingExpired, d.Code)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	rs := ResolvedState{BillingState: BillingGracePeriod, PlanID: "pro", GracePeriodRemainingDays: 1}

	a := ev.Evaluate("t1", CategoryAI, "POST", rs, nil, testNow)
	b := ev.Evaluate("t1", CategoryAI, "POST", rs, nil, testNow)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different decisions:\n%+v\n%+v", a, b)
	}
}

func TestCheckFeature_PlanGating(t *testing.T) {
	ev := NewEvaluator(testPlans(t))

	// pro carries exports.
	d := ev.CheckFeature("t1", "exports", resolved(BillingActive), nil, testNow)
	if !d.IsEntitled {
		t.Fatalf("pro plan should carry exports: %+v", d)
	}

	// pro does not carry heavy_recompute; the cheapest plan that does is
	// suggested.
	d = ev.CheckFeature("t1", "heavy_recompute", resolved(BillingActive), nil, testNow)
	if d.IsEntitled {
		t.Fatal("pro plan should not carry heavy_recompute")
	}
	if d.ActionRequired != ActionUpgrade {
		t.Fatalf("expected upgrade action, got %s", d.ActionRequired)
	}
	if want := `feature "heavy_recompute" requires plan "scale"`; d.Reason != want {
		t.Fatalf("expected %q, got %q", want, d.Reason)
	}
}

func TestCheckFeature_OverrideWinsOverPlan(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	ov := &Override{TenantID: "t1", FeatureKey: "heavy_recompute", ExpiresAt: testNow.Add(time.Hour)}

	d := ev.CheckFeature("t1", "heavy_recompute", resolved(BillingActive), ov, testNow)
	if !d.IsEntitled || !d.OverrideApplied {
		t.Fatalf("override should grant the feature: %+v", d)
	}
}

// Billing state gates feature checks before any plan lookup: a lapsed
// subscription is entitled to nothing, even features its plan carries.
func TestCheckFeature_BillingStateGatesBeforePlan(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	periodEnd := testNow.Add(-24 * time.Hour)
	canceledPast := ResolvedState{BillingState: BillingCanceled, PlanID: "pro", CurrentPeriodEnd: &periodEnd}

	cases := []struct {
		name     string
		rs       ResolvedState
		wantCode string
	}{
		{"expired", resolved(BillingExpired), CodeBillingExpired},
		{"canceled past period", canceledPast, CodeBillingExpired},
		{"none", ResolvedState{BillingState: BillingNone}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// pro carries exports; the state must deny anyway.
			d := ev.CheckFeature("t1", "exports", tc.rs, nil, testNow)
			if d.IsEntitled {
				t.Fatalf("state %s should deny feature checks: %+v", tc.rs.BillingState, d)
			}
			if d.IsDegradedAccess {
				t.Fatalf("denied check must not flag degraded access: %+v", d)
			}
			if d.Code != tc.wantCode {
				t.Fatalf("code: expected %q, got %q", tc.wantCode, d.Code)
			}
		})
	}
}

func TestCheckFeature_LapsedStatesStillAllow(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	periodEnd := testNow.Add(5 * 24 * time.Hour)

	cases := []struct {
		name string
		rs   ResolvedState
	}{
		{"past_due", resolved(BillingPastDue)},
		{"grace", ResolvedState{BillingState: BillingGracePeriod, PlanID: "pro", GracePeriodRemainingDays: 2}},
		{"canceled within period", ResolvedState{BillingState: BillingCanceled, PlanID: "pro", WithinCanceledPeriod: true, CurrentPeriodEnd: &periodEnd}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := ev.CheckFeature("t1", "exports", tc.rs, nil, testNow)
			if !d.IsEntitled || !d.IsDegradedAccess {
				t.Fatalf("expected degraded allow, got %+v", d)
			}
			if d.ActionRequired != ActionUpdatePayment {
				t.Fatalf("expected update_payment, got %s", d.ActionRequired)
			}

			// The plan still has to carry the feature.
			d = ev.CheckFeature("t1", "heavy_recompute", tc.rs, nil, testNow)
			if d.IsEntitled {
				t.Fatalf("plan gating must still apply in %s: %+v", tc.rs.BillingState, d)
			}
		})
	}
}

func TestCheckFeature_GraceCarriesRemainingDays(t *testing.T) {
	ev := NewEvaluator(testPlans(t))
	rs := ResolvedState{BillingState: BillingGracePeriod, PlanID: "pro", GracePeriodRemainingDays: 2}
	d := ev.CheckFeature("t1", "exports", rs, nil, testNow)
	if d.GracePeriodRemainingDays == nil || *d.GracePeriodRemainingDays != 2 {
		t.Fatalf("expected 2 remaining days, got %v", d.GracePeriodRemainingDays)
	}
}
