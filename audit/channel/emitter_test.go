package chanaudit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/open-rails/entitlekit/core"
)

func TestEmitter_DrainsToLog(t *testing.T) {
	log, hook := test.NewNullLogger()
	e := New(log, 8)

	e.Emit(context.Background(), core.AuditEvent{
		Type:     core.EventDenied,
		TenantID: "t1",
		Category: "exports",
	})
	e.Close()

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Data["event_type"] != core.EventDenied {
		t.Fatalf("unexpected entry data: %v", entries[0].Data)
	}
}

func TestEmitter_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := &Emitter{
		ch:     make(chan core.AuditEvent, 1),
		log:    log,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	// No drain goroutine: the buffer stays full.
	e.ch <- core.AuditEvent{Type: core.EventDenied}

	finished := make(chan struct{})
	go func() {
		e.Emit(context.Background(), core.AuditEvent{Type: core.EventDegradedAccessUsed})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
}

func TestEmitter_CloseFlushes(t *testing.T) {
	log, hook := test.NewNullLogger()
	e := New(log, 16)

	for i := 0; i < 5; i++ {
		e.Emit(context.Background(), core.AuditEvent{Type: core.EventOverrideGranted, TenantID: "t1"})
	}
	e.Close()

	if got := len(hook.AllEntries()); got != 5 {
		t.Fatalf("expected 5 entries after close, got %d", got)
	}
}
