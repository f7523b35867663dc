// Package chanaudit is the no-infra audit emitter: events go through a
// buffered channel to a drain goroutine that writes structured log lines.
// When the buffer is full events are dropped, never blocking the decision
// path.
package chanaudit

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/entitlekit/core"
)

const defaultBuffer = 1024

// Emitter is a channel-backed core.AuditEmitter.
type Emitter struct {
	ch     chan core.AuditEvent
	log    *logrus.Logger
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
}

// New starts the drain goroutine. buffer <= 0 uses the default.
func New(log *logrus.Logger, buffer int) *Emitter {
	if log == nil {
		log = logrus.New()
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	e := &Emitter{
		ch:     make(chan core.AuditEvent, buffer),
		log:    log,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go e.drain()
	return e
}

// Emit hands the event to the drain goroutine, dropping it when the
// buffer is full or the emitter is closed.
func (e *Emitter) Emit(_ context.Context, ev core.AuditEvent) {
	select {
	case e.ch <- ev:
	default:
		e.log.WithField("event_type", ev.Type).Warn("audit buffer full, event dropped")
	}
}

func (e *Emitter) drain() {
	defer close(e.done)
	for {
		select {
		case ev := <-e.ch:
			e.write(ev)
		case <-e.closed:
			// Flush whatever is already buffered, then stop.
			for {
				select {
				case ev := <-e.ch:
					e.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) write(ev core.AuditEvent) {
	e.log.WithFields(logrus.Fields{
		"event_type":    ev.Type,
		"tenant_id":     ev.TenantID,
		"actor_id":      ev.ActorID,
		"feature_key":   ev.FeatureKey,
		"category":      ev.Category,
		"billing_state": ev.BillingState,
		"plan_id":       ev.PlanID,
		"reason":        ev.Reason,
		"occurred_at":   ev.OccurredAt,
	}).Info("entitlement audit event")
}

// Close stops the drain goroutine after flushing buffered events.
func (e *Emitter) Close() error {
	e.once.Do(func() { close(e.closed) })
	<-e.done
	return nil
}
