// Package riveraudit delivers audit events through a River job queue.
//
// Emission enqueues a job and returns; the worker persists the event to
// the entitlement audit log. The queue gives at-least-once delivery, which
// downstream log consumers tolerate. A failed enqueue is logged and
// dropped: the audit sink must never block or alter a decision.
package riveraudit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/entitlekit/core"
)

// Queue is the dedicated queue name for audit delivery.
const Queue = "entitlement_audit"

const enqueueTimeout = 5 * time.Second

// JobArgs wraps one audit event as a River job.
type JobArgs struct {
	Event core.AuditEvent `json:"event"`
}

func (JobArgs) Kind() string { return "entitlement_audit" }

func (JobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: Queue}
}

// Emitter is a core.AuditEmitter that enqueues events on a River client.
// The client may be insert-only.
type Emitter struct {
	client *river.Client[pgx.Tx]
	log    *logrus.Logger
}

// NewEmitter wraps the client. A nil logger falls back to the standard one.
func NewEmitter(client *river.Client[pgx.Tx], log *logrus.Logger) *Emitter {
	if log == nil {
		log = logrus.New()
	}
	return &Emitter{client: client, log: log}
}

// Emit enqueues the event without waiting on the insert. The enqueue runs
// detached from the request context so a finished request cannot cancel
// delivery.
func (e *Emitter) Emit(ctx context.Context, ev core.AuditEvent) {
	if e.client == nil {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	go func() {
		defer cancel()
		if _, err := e.client.Insert(bg, JobArgs{Event: ev}, nil); err != nil {
			e.log.WithFields(logrus.Fields{
				"event_type": ev.Type,
				"tenant_id":  ev.TenantID,
			}).WithError(err).Warn("audit enqueue failed")
		}
	}()
}
