package cachex

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// lockTable hands out one mutex per distinct cache key, created lazily on
// first use. Entries are never removed: the key space is bounded by the set
// of distinct calls the process makes, so the table stays small in practice.
// Granularity is per key, never global, so unrelated computations are never
// serialized against each other.
type lockTable struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func newLockTable() *lockTable {
	return &lockTable{locks: xsync.NewMapOf[string, *sync.Mutex]()}
}

func (t *lockTable) get(key string) *sync.Mutex {
	mu, _ := t.locks.LoadOrCompute(key, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	return mu
}

// globalLocks is the process-wide lock table used for stampede prevention.
// Lock acquisition has no timeout; waiters are scheduled by the Go runtime,
// which hands the lock to the longest waiter under contention.
var globalLocks = newLockTable()
