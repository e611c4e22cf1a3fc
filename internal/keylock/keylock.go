// Package keylock provides per-key mutual exclusion. The period manager,
// the reconcile engine and the scheduler each keep one table so that
// mutations to a single entity (a person's period list, a reconciliation
// pair, one recurring series) are critical sections while unrelated entities
// proceed in parallel.
package keylock

import "sync"

// Table hands out one mutex per key. Locks are never removed; key
// cardinality here is entity count, which is modest.
type Table struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{locks: make(map[string]*sync.Mutex)}
}

func (t *Table) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	return m
}

// Lock acquires the mutex for key, creating it on first use.
func (t *Table) Lock(key string) {
	t.get(key).Lock()
}

// Unlock releases the mutex for key.
func (t *Table) Unlock(key string) {
	t.get(key).Unlock()
}

// LockPair acquires both keys in sorted order so two callers locking the
// same pair from opposite ends cannot deadlock. Equal keys lock once.
func (t *Table) LockPair(a, b string) {
	if a == b {
		t.Lock(a)
		return
	}
	if b < a {
		a, b = b, a
	}
	t.Lock(a)
	t.Lock(b)
}

// UnlockPair releases both keys acquired by LockPair.
func (t *Table) UnlockPair(a, b string) {
	if a == b {
		t.Unlock(a)
		return
	}
	if b < a {
		a, b = b, a
	}
	t.Unlock(b)
	t.Unlock(a)
}
