package riveraudit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"
)

// Worker persists queued audit events into the entitlement audit log
// table. River retries on error, so transient database trouble only delays
// delivery.
type Worker struct {
	river.WorkerDefaults[JobArgs]

	pg     *pgxpool.Pool
	schema string
	log    *logrus.Logger
}

// NewWorker creates a worker writing to <schema>.entitlement_audit_log
// (schema defaults to "entitlements").
func NewWorker(pg *pgxpool.Pool, schema string, log *logrus.Logger) *Worker {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "entitlements"
	}
	if log == nil {
		log = logrus.New()
	}
	return &Worker{pg: pg, schema: s, log: log}
}

func (w *Worker) table() string { return w.schema + ".entitlement_audit_log" }

func (w *Worker) Work(ctx context.Context, job *river.Job[JobArgs]) error {
	if w.pg == nil {
		return errors.New("riveraudit: no pool")
	}
	ev := job.Args.Event

	var meta []byte
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			// Unserializable metadata is a programming error; store the
			// event without it rather than retrying forever.
			w.log.WithField("event_type", ev.Type).WithError(err).Warn("audit metadata dropped")
		} else {
			meta = b
		}
	}

	_, err := w.pg.Exec(ctx, `INSERT INTO `+w.table()+`
		(event_type, tenant_id, actor_id, feature_key, category, billing_state, plan_id, reason, metadata, occurred_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10)`,
		ev.Type, ev.TenantID, ev.ActorID, ev.FeatureKey, ev.Category, ev.BillingState, ev.PlanID, ev.Reason, meta, ev.OccurredAt)
	return err
}

// Register adds the worker to a River workers registry.
func Register(workers *river.Workers, w *Worker) {
	river.AddWorker(workers, w)
}
