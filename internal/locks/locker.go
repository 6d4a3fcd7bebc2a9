package locks

import (
	"context"

	"github.com/google/uuid"
)

// ItemLocker serializes reservation writes per inventory item. Availability
// checks are check-then-act, so every capacity-affecting operation on an item
// must run under its lock.
type ItemLocker interface {
	// WithLock runs fn while holding the lock for the given item.
	WithLock(ctx context.Context, inventoryID uuid.UUID, fn func() error) error
}
