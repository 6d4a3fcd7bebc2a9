package locks

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalLocker provides in-process per-item mutual exclusion. Correct only
// when a single replica serves reservation writes; multi-replica deployments
// must use RedisLocker.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocalLocker builds an empty keyed-mutex locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[uuid.UUID]*lockEntry)}
}

// WithLock runs fn while holding the item's mutex. Entries are reference
// counted so the map does not grow with every item ever locked.
func (l *LocalLocker) WithLock(ctx context.Context, inventoryID uuid.UUID, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := l.acquireEntry(inventoryID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.releaseEntry(inventoryID, entry)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

func (l *LocalLocker) acquireEntry(id uuid.UUID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	return entry
}

func (l *LocalLocker) releaseEntry(id uuid.UUID, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, id)
	}
}
