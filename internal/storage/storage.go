package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing or has expired.
var ErrNotFound = errors.New("record not found")

// PendingKind tags the two shapes a pending correlation entry can take.
// The string value doubles as the store key prefix.
type PendingKind string

const (
	// AwaitingSession marks a session whose error event arrived first and
	// is waiting for the session log carrying the SNI hostname.
	AwaitingSession PendingKind = "pending"
	// AwaitingError marks a session whose session log arrived first; the
	// entry carries the observed SNI hostname.
	AwaitingError PendingKind = "sni"
)

// Key returns the store key for a session id under this kind.
func (k PendingKind) Key(sessionID string) string {
	return string(k) + ":" + sessionID
}

// PendingEntry is one half of an incomplete correlation, keyed by session
// id. Hostname is set only for AwaitingError entries.
type PendingEntry struct {
	SessionID string
	Kind      PendingKind
	Hostname  string
}

// PendingStore persists pending correlation entries with per-key expiry.
// TTL expiry is the only garbage-collection mechanism: an entry that is
// never matched simply becomes unobservable once its window elapses.
type PendingStore interface {
	// Get returns the live entry for the session id and kind, or
	// ErrNotFound when none exists.
	Get(ctx context.Context, sessionID string, kind PendingKind) (PendingEntry, error)

	// Put stores the entry with the given TTL, replacing any live entry
	// of the same kind for the session id.
	Put(ctx context.Context, entry PendingEntry, ttl time.Duration) error

	// Delete removes the entry. Deleting an absent entry is not an error.
	Delete(ctx context.Context, sessionID string, kind PendingKind) error
}

// TelemetryEvent records the outcome of one processed batch.
type TelemetryEvent struct {
	ID        string
	Stream    string
	Severity  string
	Message   string
	Timestamp time.Time
}

// TelemetryStore persists operational telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}
