package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLeaseTTL    = 10 * time.Second
	defaultRetryDelay  = 50 * time.Millisecond
	defaultAcquireWait = 5 * time.Second
)

// ErrLockUnavailable is returned when a lease could not be acquired before
// the wait deadline.
var ErrLockUnavailable = errors.New("item lock unavailable")

// redisStore defines the operations the lease needs.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
	ItemLockKey(inventoryID string) string
}

// releaseScript deletes the lease in a single round trip, and only when the
// stored owner still matches. Splitting the check and the delete would let
// an expired lease take out the next holder's lock.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLocker implements ItemLocker with a SETNX lease per item. The TTL
// bounds how long a crashed holder can block other replicas.
type RedisLocker struct {
	client      redisStore
	ttl         time.Duration
	retryDelay  time.Duration
	acquireWait time.Duration
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client redisStore, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for locker")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLocker{
		client:      client,
		ttl:         ttl,
		retryDelay:  defaultRetryDelay,
		acquireWait: defaultAcquireWait,
	}, nil
}

// WithLock acquires the item's lease, runs fn, and releases the lease only
// if this holder still owns it.
func (l *RedisLocker) WithLock(ctx context.Context, inventoryID uuid.UUID, fn func() error) error {
	key := l.client.ItemLockKey(inventoryID.String())
	owner := uuid.NewString()

	if err := l.acquire(ctx, key, owner); err != nil {
		return err
	}
	defer l.release(key, owner)

	return fn()
}

func (l *RedisLocker) acquire(ctx context.Context, key, owner string) error {
	deadline := time.Now().Add(l.acquireWait)
	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			return fmt.Errorf("setnx: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockUnavailable
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

// release frees the lease only if the owner value still matches. A fresh
// context is used so a cancelled request still cleans up its lease.
func (l *RedisLocker) release(key, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _ = l.client.Eval(ctx, releaseScript, []string{key}, owner)
}
