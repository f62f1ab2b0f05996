// Package bolt implements pending-entry persistence over a BoltDB file,
// for deployments that want a single-file store without SQL.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robdanz/tf-cf-dni-list/internal/storage"
	"go.etcd.io/bbolt"
)

const pendingBucket = "pending_entries"

// record is the stored form of a pending entry. Expiry is lazy: a record
// whose deadline has passed reads as absent and is removed on that read.
type record struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Hostname  string `json:"hostname,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
}

// Store provides a BoltDB-backed pending store.
type Store struct {
	db    *bbolt.DB
	clock func() time.Time
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db, clock: time.Now}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(pendingBucket)); err != nil {
			return fmt.Errorf("create pending bucket: %w", err)
		}
		return nil
	})
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// Get returns the live entry for the session id and kind.
func (s *Store) Get(ctx context.Context, sessionID string, kind storage.PendingKind) (storage.PendingEntry, error) {
	if err := ctx.Err(); err != nil {
		return storage.PendingEntry{}, err
	}
	if s == nil || s.db == nil {
		return storage.PendingEntry{}, fmt.Errorf("storage is not configured")
	}

	key := []byte(kind.Key(sessionID))
	var rec record
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(pendingBucket))
		if bucket == nil {
			return fmt.Errorf("pending bucket is missing")
		}
		payload := bucket.Get(key)
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("unmarshal pending entry: %w", err)
		}
		if rec.ExpiresAt <= s.now().UTC().UnixMilli() {
			if err := bucket.Delete(key); err != nil {
				return fmt.Errorf("prune expired entry: %w", err)
			}
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return storage.PendingEntry{}, err
	}

	return storage.PendingEntry{
		SessionID: sessionID,
		Kind:      kind,
		Hostname:  rec.Hostname,
	}, nil
}

// Put stores the entry with the given TTL, replacing any live entry of
// the same kind for the session id.
func (s *Store) Put(ctx context.Context, entry storage.PendingEntry, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(entry.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(record{
		SessionID: entry.SessionID,
		Kind:      string(entry.Kind),
		Hostname:  entry.Hostname,
		ExpiresAt: s.now().UTC().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal pending entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(pendingBucket))
		if bucket == nil {
			return fmt.Errorf("pending bucket is missing")
		}
		return bucket.Put([]byte(entry.Kind.Key(entry.SessionID)), payload)
	})
}

// Delete removes the entry for the session id and kind.
func (s *Store) Delete(ctx context.Context, sessionID string, kind storage.PendingKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(pendingBucket))
		if bucket == nil {
			return fmt.Errorf("pending bucket is missing")
		}
		return bucket.Delete([]byte(kind.Key(sessionID)))
	})
}

var _ storage.PendingStore = (*Store)(nil)
