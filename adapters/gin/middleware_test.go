package entgin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	entgin "github.com/open-rails/entitlekit/adapters/gin"
	"github.com/open-rails/entitlekit/core"
	"github.com/open-rails/entitlekit/plans"
	memorystore "github.com/open-rails/entitlekit/storage/memory"
	enttest "github.com/open-rails/entitlekit/testing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSubs struct {
	byTenant map[string]*core.Subscription
	err      error
}

func (s *fakeSubs) Latest(_ context.Context, tenantID string) (*core.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byTenant[tenantID], nil
}

func testPlansLoader(t *testing.T) *plans.Loader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.json")
	cfg := `{"plans": {"free": {"features": []}, "pro": {"features": ["exports", "ai"], "price_monthly_cents": 4900}}}`
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	loader, err := plans.NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	return loader
}

func newTestService(t *testing.T, subs *fakeSubs) (*core.Service, *memorystore.OverrideStore) {
	t.Helper()
	store := memorystore.NewOverrideStore()
	svc := core.NewService(core.ServiceConfig{
		Subscriptions: subs,
		Overrides:     store,
		Plans:         testPlansLoader(t),
		Now:           enttest.Clock(enttest.Now),
	})
	return svc, store
}

func enforcedRouter(svc *core.Service) *gin.Engine {
	r := gin.New()
	r.Use(entgin.Enforce(entgin.EnforceConfig{Service: svc}))
	handler := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/health", handler)
	r.GET("/dashboard", handler)
	r.POST("/dashboard/widgets", handler)
	r.GET("/exports/report", handler)
	r.POST("/exports/run", handler)
	return r
}

func doReq(r *gin.Engine, method, path, tenantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEnforce_ActiveTenantPassesWithHeaders(t *testing.T) {
	svc, _ := newTestService(t, &fakeSubs{byTenant: map[string]*core.Subscription{
		"t1": enttest.ActiveSubscription("t1", "pro"),
	}})
	r := enforcedRouter(svc)

	w := doReq(r, http.MethodGet, "/exports/report", "t1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Billing-State"); got != "active" {
		t.Fatalf("X-Billing-State = %q", got)
	}
	if got := w.Header().Get("X-Billing-Action-Required"); got != "" {
		t.Fatalf("active tenant should carry no action header, got %q", got)
	}
}

func TestEnforce_GraceReadAllowedPremiumDenied(t *testing.T) {
	graceEnds := enttest.Now.Add(36 * time.Hour)
	svc, _ := newTestService(t, &fakeSubs{byTenant: map[string]*core.Subscription{
		"t1": enttest.GraceSubscription("t1", "pro", graceEnds),
	}})
	r := enforcedRouter(svc)

	w := doReq(r, http.MethodGet, "/dashboard", "t1")
	if w.Code != http.StatusOK {
		t.Fatalf("non-premium read in grace should pass, got %d", w.Code)
	}
	if got := w.Header().Get("X-Billing-State"); got != "grace_period" {
		t.Fatalf("X-Billing-State = %q", got)
	}
	if got := w.Header().Get("X-Grace-Period-Remaining"); got != "2" {
		t.Fatalf("X-Grace-Period-Remaining = %q, want 2", got)
	}
	if got := w.Header().Get("X-Billing-Action-Required"); got != "update_payment" {
		t.Fatalf("X-Billing-Action-Required = %q", got)
	}

	w = doReq(r, http.MethodGet, "/exports/report", "t1")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("premium in grace should get 402, got %d", w.Code)
	}
	if got := w.Header().Get("X-Grace-Period-Remaining"); got != "2" {
		t.Fatalf("denial should still carry grace header, got %q", got)
	}

	w = doReq(r, http.MethodPost, "/dashboard/widgets", "t1")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("write in grace should get 402, got %d", w.Code)
	}
}

func TestEnforce_ExpiredPremiumHardDenyBody(t *testing.T) {
	svc, _ := newTestService(t, &fakeSubs{byTenant: map[string]*core.Subscription{
		"t1": enttest.ExpiredSubscription("t1", "pro"),
	}})
	r := enforcedRouter(svc)

	w := doReq(r, http.MethodGet, "/exports/report", "t1")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	var body core.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != core.CodeBillingExpired {
		t.Fatalf("body code = %q, want %q", body.Code, core.CodeBillingExpired)
	}
	if body.MachineReadable.BillingState != "expired" || body.MachineReadable.Category != "exports" {
		t.Fatalf("machine_readable mismatch: %+v", body.MachineReadable)
	}
	if got := w.Header().Get("X-Billing-Action-Required"); got != "update_payment" {
		t.Fatalf("X-Billing-Action-Required = %q", got)
	}
}

func TestEnforce_OverrideBypassesExpiredState(t *testing.T) {
	svc, _ := newTestService(t, &fakeSubs{byTenant: map[string]*core.Subscription{
		"t1": enttest.ExpiredSubscription("t1", "pro"),
	}})
	if _, err := svc.CreateOrReplaceOverride(context.Background(), core.OverrideInput{
		TenantID:   "t1",
		FeatureKey: "exports",
		ExpiresAt:  enttest.Now.Add(24 * time.Hour),
		Reason:     "incident credit",
		ActorID:    "admin-1",
	}); err != nil {
		t.Fatal(err)
	}
	r := enforcedRouter(svc)

	w := doReq(r, http.MethodGet, "/exports/report", "t1")
	if w.Code != http.StatusOK {
		t.Fatalf("override should bypass expired state, got %d: %s", w.Code, w.Body.String())
	}
}

func TestEnforce_MissingSubscriptionDeniesEverything(t *testing.T) {
	svc, _ := newTestService(t, &fakeSubs{byTenant: map[string]*core.Subscription{}})
	r := enforcedRouter(svc)

	w := doReq(r, http.MethodGet, "/dashboard", "ghost")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("no subscription should deny reads too, got %d", w.Code)
	}
	if got := w.Header().Get("X-Billing-State"); got != "none" {
		t.Fatalf("X-Billing-State = %q", got)
	}
}

func TestEnforce_SkipsHealthAndWebhooks(t *testing.T) {
	svc, _ := newTestService(t, &fakeSubs{byTenant: map[string]*core.Subscription{}})
	r := enforcedRouter(svc)

	w := doReq(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health must bypass enforcement, got %d", w.Code)
	}
	if got := w.Header().Get("X-Billing-State"); got != "" {
		t.Fatalf("skipped path should carry no billing headers, got %q", got)
	}
}

func TestEnforce_UnresolvedTenantRejected(t *testing.T) {
	svc, _ := newTestService(t, &fakeSubs{byTenant: map[string]*core.Subscription{}})
	r := enforcedRouter(svc)

	w := doReq(r, http.MethodGet, "/dashboard", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without tenant, got %d", w.Code)
	}
}

func TestEnforce_EvaluationFailureFailsClosed(t *testing.T) {
	svc, _ := newTestService(t, &fakeSubs{err: errors.New("pg down")})
	r := enforcedRouter(svc)

	w := doReq(r, http.MethodGet, "/dashboard", "t1")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on evaluation failure, got %d", w.Code)
	}
}

func TestRequireCategory_TagBeatsPathInference(t *testing.T) {
	svc, _ := newTestService(t, &fakeSubs{byTenant: map[string]*core.Subscription{
		"t1": enttest.ExpiredSubscription("t1", "pro"),
	}})
	r := gin.New()
	// The path says nothing about AI; the tag does.
	r.GET("/v1/run",
		entgin.RequireCategory(core.CategoryAI),
		entgin.Enforce(entgin.EnforceConfig{Service: svc}),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) },
	)

	w := doReq(r, http.MethodGet, "/v1/run", "t1")
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("tagged premium route should deny on expired, got %d", w.Code)
	}
	var body core.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Category != "ai" {
		t.Fatalf("denial category = %q, want ai", body.Category)
	}
}
