package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/robdanz/tf-cf-dni-list/internal/correlate"
	"github.com/robdanz/tf-cf-dni-list/internal/storage"
)

type captureStore struct {
	events []storage.TelemetryEvent
}

func (c *captureStore) AppendTelemetryEvent(_ context.Context, evt storage.TelemetryEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func TestEmitterIsNoopWithoutStore(t *testing.T) {
	var emitter *Emitter
	if err := emitter.Emit(context.Background(), StreamErrors, SeverityInfo, "x"); err != nil {
		t.Errorf("nil emitter emit = %v, want nil", err)
	}
	if err := NewEmitter(nil).Emit(context.Background(), StreamErrors, SeverityInfo, "x"); err != nil {
		t.Errorf("nil store emit = %v, want nil", err)
	}
}

func TestEmitErrorBatch(t *testing.T) {
	store := &captureStore{}
	emitter := NewEmitter(store)
	now := time.Unix(1700000000, 0)
	emitter.clock = func() time.Time { return now }

	summary := correlate.ErrorSummary{
		PendingSessionIDs: 2,
		MatchedSessionIDs: 1,
		AddedHostnames:    []string{"example.com"},
	}
	if err := emitter.EmitErrorBatch(context.Background(), summary); err != nil {
		t.Fatalf("emit: %v", err)
	}

	if len(store.events) != 1 {
		t.Fatalf("got %d events, want 1", len(store.events))
	}
	evt := store.events[0]
	if evt.Stream != StreamErrors {
		t.Errorf("stream = %q", evt.Stream)
	}
	if evt.Severity != string(SeverityInfo) {
		t.Errorf("severity = %q, want INFO for a clean batch", evt.Severity)
	}
	if evt.ID == "" {
		t.Error("event id is empty")
	}
	if !evt.Timestamp.Equal(now.UTC()) {
		t.Errorf("timestamp = %v, want clock time", evt.Timestamp)
	}
	if !strings.Contains(evt.Message, "pending=2") || !strings.Contains(evt.Message, "matched=1") {
		t.Errorf("message = %q", evt.Message)
	}
}

func TestEmitSessionBatchWarnsOnErrors(t *testing.T) {
	store := &captureStore{}
	emitter := NewEmitter(store)

	summary := correlate.SessionSummary{
		Added:  1,
		Errors: []string{"session s2: append failed"},
	}
	if err := emitter.EmitSessionBatch(context.Background(), summary); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if store.events[0].Severity != string(SeverityWarn) {
		t.Errorf("severity = %q, want WARN for a partial batch", store.events[0].Severity)
	}
}
