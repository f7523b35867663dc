// Package jobs runs the engine's background maintenance on a cron
// schedule: sweeping expired overrides and refreshing the plan catalog.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/entitlekit/core"
)

const (
	// DefaultSweepSchedule runs the expired-override sweep every ten
	// minutes, comfortably inside the snapshot TTL.
	DefaultSweepSchedule = "@every 10m"

	// DefaultPlanReloadSchedule re-reads plans.json hourly so catalog
	// edits land without a restart.
	DefaultPlanReloadSchedule = "@hourly"
)

// Config wires the Runner. Service is required.
type Config struct {
	Service *core.Service
	Logger  *logrus.Logger

	SweepSchedule      string // defaults to DefaultSweepSchedule
	PlanReloadSchedule string // defaults to DefaultPlanReloadSchedule; "off" disables
	Now                func() time.Time
}

// Runner owns the cron scheduler for the maintenance jobs.
type Runner struct {
	svc  *core.Service
	log  *logrus.Logger
	cron *cron.Cron
	now  func() time.Time

	sweepSchedule  string
	reloadSchedule string
}

// NewRunner builds a Runner; call Start to begin scheduling.
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		svc:            cfg.Service,
		log:            cfg.Logger,
		now:            cfg.Now,
		sweepSchedule:  cfg.SweepSchedule,
		reloadSchedule: cfg.PlanReloadSchedule,
	}
	if r.log == nil {
		r.log = logrus.New()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sweepSchedule == "" {
		r.sweepSchedule = DefaultSweepSchedule
	}
	if r.reloadSchedule == "" {
		r.reloadSchedule = DefaultPlanReloadSchedule
	}
	return r
}

// Start registers the jobs and launches the scheduler.
func (r *Runner) Start() error {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(r.sweepSchedule, func() {
		if _, err := r.SweepExpiredOverrides(context.Background()); err != nil {
			r.log.WithError(err).Error("override sweep failed")
		}
	}); err != nil {
		return err
	}
	if r.reloadSchedule != "off" {
		if _, err := c.AddFunc(r.reloadSchedule, func() {
			if err := r.svc.ReloadPlans(); err != nil {
				r.log.WithError(err).Error("plan catalog reload failed")
			}
		}); err != nil {
			return err
		}
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// SweepExpiredOverrides finds overrides whose expiry has passed, emits one
// audit event per row and drops affected tenants from the snapshot cache.
// Rows stay in the store for history; the sweep only makes their lapse
// visible. Returns the number of rows swept.
func (r *Runner) SweepExpiredOverrides(ctx context.Context) (int, error) {
	now := r.now().UTC()
	expired, err := r.svc.Overrides().ClaimExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	tenants := make(map[string]struct{}, len(expired))
	for _, ov := range expired {
		r.svc.Audit().Emit(ctx, core.AuditEvent{
			Type:       core.EventOverrideExpired,
			TenantID:   ov.TenantID,
			FeatureKey: ov.FeatureKey,
			ActorID:    ov.ActorID,
			Reason:     ov.Reason,
			OccurredAt: now,
		})
		tenants[ov.TenantID] = struct{}{}
	}
	for tenantID := range tenants {
		r.svc.InvalidateTenant(ctx, tenantID)
	}

	r.log.WithFields(logrus.Fields{
		"overrides": len(expired),
		"tenants":   len(tenants),
	}).Info("expired overrides swept")
	return len(expired), nil
}
