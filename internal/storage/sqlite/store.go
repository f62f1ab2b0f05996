// Package sqlite implements pending-entry and telemetry persistence over
// a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/robdanz/tf-cf-dni-list/internal/platform/storage/sqlitemigrate"
	"github.com/robdanz/tf-cf-dni-list/internal/storage"
	"github.com/robdanz/tf-cf-dni-list/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Store provides a SQLite-backed pending store and telemetry store.
//
// Expiry is lazy: a row whose expires_at has passed is treated as absent
// and removed on the read that observes it.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens the store at path and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: sqlDB, clock: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store is not configured")
	}
	return nil
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// Get returns the live entry for the session id and kind.
func (s *Store) Get(ctx context.Context, sessionID string, kind storage.PendingKind) (storage.PendingEntry, error) {
	if err := s.ensureDB(); err != nil {
		return storage.PendingEntry{}, err
	}

	key := kind.Key(sessionID)
	var hostname string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT hostname, expires_at FROM pending_entries WHERE key = ?`,
		key,
	).Scan(&hostname, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PendingEntry{}, storage.ErrNotFound
		}
		return storage.PendingEntry{}, fmt.Errorf("query pending entry: %w", err)
	}

	if expiresAt <= toMillis(s.now()) {
		// Expired rows read as absent; remove the dead row while here.
		if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_entries WHERE key = ?`, key); err != nil {
			return storage.PendingEntry{}, fmt.Errorf("prune expired entry: %w", err)
		}
		return storage.PendingEntry{}, storage.ErrNotFound
	}

	return storage.PendingEntry{
		SessionID: sessionID,
		Kind:      kind,
		Hostname:  hostname,
	}, nil
}

// Put stores the entry with the given TTL, replacing any live entry of
// the same kind for the session id.
func (s *Store) Put(ctx context.Context, entry storage.PendingEntry, ttl time.Duration) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if strings.TrimSpace(entry.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	expiresAt := toMillis(s.now().Add(ttl))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_entries (key, session_id, kind, hostname, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			hostname = excluded.hostname,
			expires_at = excluded.expires_at`,
		entry.Kind.Key(entry.SessionID), entry.SessionID, string(entry.Kind), entry.Hostname, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("store pending entry: %w", err)
	}
	return nil
}

// Delete removes the entry for the session id and kind.
func (s *Store) Delete(ctx context.Context, sessionID string, kind storage.PendingKind) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_entries WHERE key = ?`, kind.Key(sessionID),
	); err != nil {
		return fmt.Errorf("delete pending entry: %w", err)
	}
	return nil
}

// AppendTelemetryEvent records one batch-outcome event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry_events (id, stream, severity, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		evt.ID, evt.Stream, evt.Severity, evt.Message, toMillis(evt.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}
