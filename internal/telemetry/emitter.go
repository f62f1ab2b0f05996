// Package telemetry records operational batch-outcome events so each
// upstream log delivery leaves an auditable trace.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robdanz/tf-cf-dni-list/internal/correlate"
	"github.com/robdanz/tf-cf-dni-list/internal/storage"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
)

// Stream names the two ingestion paths.
const (
	StreamErrors   = "errors"
	StreamSessions = "sessions"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, stream string, severity Severity, message string) error {
	if e == nil || e.store == nil {
		return nil
	}
	now := time.Now().UTC()
	if e.clock != nil {
		now = e.clock().UTC()
	}
	return e.store.AppendTelemetryEvent(ctx, storage.TelemetryEvent{
		ID:        uuid.NewString(),
		Stream:    stream,
		Severity:  string(severity),
		Message:   message,
		Timestamp: now,
	})
}

// EmitErrorBatch records the outcome of one error-event batch.
func (e *Emitter) EmitErrorBatch(ctx context.Context, summary correlate.ErrorSummary) error {
	severity := SeverityInfo
	if !summary.OK() {
		severity = SeverityWarn
	}
	message := fmt.Sprintf("pending=%d matched=%d added=%d skipped=%d errors=%d",
		summary.PendingSessionIDs, summary.MatchedSessionIDs,
		len(summary.AddedHostnames), summary.SkippedExisting, len(summary.Errors))
	return e.Emit(ctx, StreamErrors, severity, message)
}

// EmitSessionBatch records the outcome of one session-event batch.
func (e *Emitter) EmitSessionBatch(ctx context.Context, summary correlate.SessionSummary) error {
	severity := SeverityInfo
	if !summary.OK() {
		severity = SeverityWarn
	}
	message := fmt.Sprintf("added=%d skipped=%d stored=%d errors=%d",
		summary.Added, summary.SkippedExisting, summary.StoredForLater, len(summary.Errors))
	return e.Emit(ctx, StreamSessions, severity, message)
}
