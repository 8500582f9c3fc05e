package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Provider builds a fresh lock instance for a key. Callers obtain one lock
// per critical section.
type Provider func(key string) DistLock

// NewProvider picks the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks, and to an in-process
// lock table when neither is configured.
func NewProvider(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Provider {
	switch {
	case redisClient != nil:
		return func(key string) DistLock { return NewRedisLock(redisClient, key, ttl) }
	case db != nil:
		return func(key string) DistLock { return NewPGAdvisoryLock(db, key) }
	}
	table := NewLocalTable()
	return table.Lock
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// pg_try_advisory_lock / pg_advisory_unlock are session-scoped, so the lock
// pins one pooled connection from Acquire until Release. The lock is
// released automatically if that connection drops.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, fmt.Errorf("advisory lock %d already held by this instance", l.lockID)
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// =============================================================================
// In-process lock table (single-process deployments and tests)
// =============================================================================

// LocalTable is a set of held keys shared by every lock it hands out.
type LocalTable struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalTable creates an empty lock table.
func NewLocalTable() *LocalTable {
	return &LocalTable{held: make(map[string]struct{})}
}

// Lock returns a lock for key backed by this table.
func (t *LocalTable) Lock(key string) DistLock {
	return &localLock{table: t, key: key}
}

type localLock struct {
	table *LocalTable
	key   string
	owned bool
}

func (l *localLock) Acquire(_ context.Context) (bool, error) {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if _, busy := l.table.held[l.key]; busy {
		return false, nil
	}
	l.table.held[l.key] = struct{}{}
	l.owned = true
	return true, nil
}

func (l *localLock) Release(_ context.Context) error {
	if !l.owned {
		return nil
	}
	l.table.mu.Lock()
	delete(l.table.held, l.key)
	l.table.mu.Unlock()
	l.owned = false
	return nil
}
