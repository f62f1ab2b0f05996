// Package correlate joins the two log streams on their shared session id
// and drives the allow-list for every resolved match.
//
// Cross-request state lives entirely in the pending store; within one
// batch, per-session processing is sequential because each id runs a
// read-then-conditionally-write-then-delete sequence that must not race
// against itself.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robdanz/tf-cf-dni-list/internal/allowlist"
	"github.com/robdanz/tf-cf-dni-list/internal/hostname"
	"github.com/robdanz/tf-cf-dni-list/internal/storage"
)

// DefaultFailureSentinel is the error-event failure reason that marks a
// session as eligible for correlation. TLS-inspected origins that pin
// their certificates surface this reason in the gateway error log.
const DefaultFailureSentinel = "certificate_pinned"

// DefaultPendingTTL is the join window for unmatched sessions.
const DefaultPendingTTL = 5 * time.Minute

// Config carries the fixed parameters of the engine. Values are injected
// at construction; the engine reads no ambient state.
type Config struct {
	// FailureSentinel is the exact failure reason an error record must
	// carry to be eligible.
	FailureSentinel string
	// PendingTTL bounds the lifetime of unmatched pending entries.
	PendingTTL time.Duration
}

// Engine performs the two-sided join and owns all windowing logic.
type Engine struct {
	store  storage.PendingStore
	list   allowlist.Client
	config Config
}

// NewEngine builds an engine over the pending store and list client.
func NewEngine(store storage.PendingStore, list allowlist.Client, config Config) *Engine {
	if config.FailureSentinel == "" {
		config.FailureSentinel = DefaultFailureSentinel
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = DefaultPendingTTL
	}
	return &Engine{store: store, list: list, config: config}
}

// match is one resolved (session id, hostname) pair queued for the
// allow-list phase.
type match struct {
	sessionID string
	hostname  string
}

// IngestErrors processes one error-event batch.
//
// Eligible records are deduplicated by session id within the batch. A
// session whose hostname is already waiting becomes a match; the waiting
// entry is deleted before its hostname is used, so a retried batch cannot
// double-process the same join. Sessions with no counterpart get a
// presence marker with the pending TTL.
//
// Every failure is folded into the summary. A store failure aborts the
// remaining loop, but matches consumed before the failure still go
// through the allow-list phase: their pending entries are already
// deleted, so skipping them would lose the hostnames for good.
func (e *Engine) IngestErrors(ctx context.Context, records []ErrorRecord) ErrorSummary {
	var summary ErrorSummary
	seen := make(map[string]struct{})
	var matches []match

recordLoop:
	for _, rec := range records {
		if rec.FailureReason != e.config.FailureSentinel {
			continue
		}
		id := strings.TrimSpace(rec.SessionID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		entry, err := e.store.Get(ctx, id, storage.AwaitingError)
		switch {
		case err == nil:
			// Delete before use: a concurrent retry must not observe the
			// entry again once this batch decided to treat it as matched.
			if derr := e.store.Delete(ctx, id, storage.AwaitingError); derr != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("session %s: %v", id, derr))
				break recordLoop
			}
			summary.MatchedSessionIDs++
			host := strings.ToLower(strings.TrimSpace(entry.Hostname))
			if !hostname.Valid(host) {
				summary.Errors = append(summary.Errors, fmt.Sprintf("session %s: invalid hostname %q", id, entry.Hostname))
				continue
			}
			matches = append(matches, match{sessionID: id, hostname: host})
		case errors.Is(err, storage.ErrNotFound):
			marker := storage.PendingEntry{SessionID: id, Kind: storage.AwaitingSession}
			if perr := e.store.Put(ctx, marker, e.config.PendingTTL); perr != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("session %s: %v", id, perr))
				break recordLoop
			}
			summary.PendingSessionIDs++
		default:
			summary.Errors = append(summary.Errors, fmt.Sprintf("session %s: %v", id, err))
			break recordLoop
		}
	}

	summary.AddedHostnames, summary.SkippedExisting, summary.Errors =
		e.resolveMatches(ctx, matches, summary.Errors)
	return summary
}

// IngestSessions processes one session-event batch.
//
// Records without a session id or with an invalid hostname are filtered
// before they reach the store. A session whose error marker is already
// waiting becomes a match; otherwise the hostname is stored for a later
// error event under the pending TTL.
func (e *Engine) IngestSessions(ctx context.Context, records []SessionRecord) SessionSummary {
	var summary SessionSummary
	var matches []match

recordLoop:
	for _, rec := range records {
		id := strings.TrimSpace(rec.SessionID)
		if id == "" {
			continue
		}
		host := strings.ToLower(strings.TrimSpace(rec.Hostname))
		if !hostname.Valid(host) {
			continue
		}

		_, err := e.store.Get(ctx, id, storage.AwaitingSession)
		switch {
		case err == nil:
			if derr := e.store.Delete(ctx, id, storage.AwaitingSession); derr != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("session %s: %v", id, derr))
				break recordLoop
			}
			summary.Matched++
			matches = append(matches, match{sessionID: id, hostname: host})
		case errors.Is(err, storage.ErrNotFound):
			entry := storage.PendingEntry{SessionID: id, Kind: storage.AwaitingError, Hostname: host}
			if perr := e.store.Put(ctx, entry, e.config.PendingTTL); perr != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("session %s: %v", id, perr))
				break recordLoop
			}
			summary.StoredForLater++
		default:
			summary.Errors = append(summary.Errors, fmt.Sprintf("session %s: %v", id, err))
			break recordLoop
		}
	}

	// The common case is a batch with no matches; skip the allow-list
	// round-trip entirely.
	if len(matches) == 0 {
		return summary
	}

	summary.AddedHostnames, summary.SkippedExisting, summary.Errors =
		e.resolveMatches(ctx, matches, summary.Errors)
	summary.Added = len(summary.AddedHostnames)
	return summary
}

// resolveMatches fetches the allow-list membership once for the whole
// batch, then appends each matched hostname that is not already present.
// The snapshot is updated in memory as appends succeed so the same
// hostname is appended at most once per batch. Append failures are
// isolated per hostname; a read failure aborts the whole phase.
func (e *Engine) resolveMatches(ctx context.Context, matches []match, errs []string) (added []string, skipped int, outErrs []string) {
	outErrs = errs
	if len(matches) == 0 {
		return nil, 0, outErrs
	}

	current, err := e.list.Hostnames(ctx)
	if err != nil {
		outErrs = append(outErrs, fmt.Sprintf("allow-list read: %v", err))
		return nil, 0, outErrs
	}

	present := make(map[string]struct{}, len(current))
	for _, host := range current {
		present[strings.ToLower(host)] = struct{}{}
	}

	for _, m := range matches {
		if _, ok := present[m.hostname]; ok {
			skipped++
			continue
		}
		if err := e.list.Append(ctx, m.hostname); err != nil {
			outErrs = append(outErrs, fmt.Sprintf("session %s: %v", m.sessionID, err))
			continue
		}
		present[m.hostname] = struct{}{}
		added = append(added, m.hostname)
	}
	return added, skipped, outErrs
}
