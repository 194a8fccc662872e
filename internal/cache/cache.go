package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed TTL cache for upstream documents (fee config,
// lazy item lookups). Writes are serialized across processes with a file lock.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

type Result struct {
	Hit      bool
	Value    []byte
	Age      time.Duration
	Stale    bool
	TooStale bool
}

// Fresh reports whether the entry can be served without refetching.
func (r Result) Fresh() bool {
	return r.Hit && !r.Stale
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}

	lock := flock.New(lockPath)
	err = InitSchema(db, lock, []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"CREATE TABLE IF NOT EXISTS cache_entries (key TEXT PRIMARY KEY, value BLOB NOT NULL, created_at INTEGER NOT NULL, ttl_seconds INTEGER NOT NULL);",
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	store := &Store{db: db, lock: lock}
	_ = store.Prune()
	return store, nil
}

// busyTimeoutMillis is how long a connection waits on another process's
// write before failing with SQLITE_BUSY.
const busyTimeoutMillis = 5000

// DSN sets a busy timeout on every pooled connection to path.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, busyTimeoutMillis)
}

// InitSchema runs queries while holding lock, so concurrent opens of the same
// database do not race on journal mode or table creation.
func InitSchema(db *sql.DB, lock *flock.Flock, queries []string) error {
	return WithLock(lock, func() error {
		for _, query := range queries {
			if _, err := db.Exec(query); err != nil {
				return err
			}
		}
		return nil
	})
}

// WithLock runs fn while holding lock, polling for up to the busy timeout.
func WithLock(lock *flock.Flock, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), busyTimeoutMillis*time.Millisecond)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("acquire %s: timeout", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Key builds a stable cache key from a namespace and its parts.
func Key(namespace string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return namespace + ":" + hex.EncodeToString(sum[:16])
}

// Prune deletes entries whose TTL has fully expired.
func (s *Store) Prune() error {
	if s == nil || s.db == nil {
		return nil
	}
	nowUnix := time.Now().UTC().Unix()
	_, err := s.db.Exec("DELETE FROM cache_entries WHERE created_at + ttl_seconds < ?", nowUnix)
	if err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	return nil
}

func (s *Store) Get(key string, maxStale time.Duration) (Result, error) {
	var value []byte
	var createdUnix int64
	var ttlSeconds int64
	err := s.db.QueryRow("SELECT value, created_at, ttl_seconds FROM cache_entries WHERE key = ?", key).Scan(&value, &createdUnix, &ttlSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{Hit: false}, nil
		}
		return Result{}, fmt.Errorf("cache read: %w", err)
	}

	age := time.Since(time.Unix(createdUnix, 0).UTC())
	if age < 0 {
		age = 0
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	stale := age > ttl
	return Result{
		Hit:      true,
		Value:    value,
		Age:      age,
		Stale:    stale,
		TooStale: stale && maxStale >= 0 && age > ttl+maxStale,
	}, nil
}

func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	return s.withLock(func() error {
		ttlSeconds := int64(ttl.Seconds())
		if ttlSeconds <= 0 {
			ttlSeconds = 1
		}
		_, err := s.db.Exec(`
			INSERT INTO cache_entries (key, value, created_at, ttl_seconds)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value=excluded.value,
				created_at=excluded.created_at,
				ttl_seconds=excluded.ttl_seconds
		`, key, value, time.Now().UTC().Unix(), ttlSeconds)
		if err != nil {
			return fmt.Errorf("cache write: %w", err)
		}
		return nil
	})
}

func (s *Store) Delete(key string) error {
	return s.withLock(func() error {
		if _, err := s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key); err != nil {
			return fmt.Errorf("cache delete: %w", err)
		}
		return nil
	})
}

// Remember serves a fresh entry for key, otherwise calls fetch and stores
// the result. When fetch fails a stale entry within maxStale is served.
func (s *Store) Remember(ctx context.Context, key string, ttl, maxStale time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, Result, error) {
	cached, err := s.Get(key, maxStale)
	if err != nil {
		return nil, Result{}, err
	}
	if cached.Fresh() {
		return cached.Value, cached, nil
	}
	value, fetchErr := fetch(ctx)
	if fetchErr != nil {
		if cached.Hit && !cached.TooStale {
			return cached.Value, cached, nil
		}
		return nil, cached, fetchErr
	}
	if err := s.Set(key, value, ttl); err != nil {
		return value, Result{}, err
	}
	return value, Result{Hit: false, Value: value}, nil
}

func (s *Store) withLock(fn func() error) error {
	if err := WithLock(s.lock, fn); err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	return nil
}
