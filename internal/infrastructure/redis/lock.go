package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Only the owner token may release or extend a lock.
var (
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// DistributedLock is a single-owner Redis lock with a TTL.
type DistributedLock struct {
	client   redis.Cmdable
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a new distributed lock
func NewDistributedLock(client redis.Cmdable, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    "lock:" + key,
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to acquire the lock once
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	l.acquired = ok
	return ok, nil
}

// AcquireWithin polls until the lock is held or wait has elapsed.
func (l *DistributedLock) AcquireWithin(ctx context.Context, wait, pollEvery time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().Add(pollEvery).After(deadline) {
			return fmt.Errorf("%s: %w", l.key, domainErrors.ErrLockAcquisitionFailed)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollEvery):
		}
	}
}

// Extend pushes the lock expiry out by ttl.
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.acquired {
		return domainErrors.ErrLockNotHeld
	}

	n, err := extendLockScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	if n == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// Release releases the lock if this instance still owns it.
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	n, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	l.acquired = false
	if n == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// Locker hands out per-key locks with a shared TTL.
type Locker struct {
	client    redis.Cmdable
	ttl       time.Duration
	pollEvery time.Duration
}

func NewLocker(client redis.Cmdable, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl, pollEvery: 50 * time.Millisecond}
}

// Lock blocks up to wait for key and returns the function that releases it.
func (l *Locker) Lock(ctx context.Context, key string, wait time.Duration) (func(context.Context) error, error) {
	lock := NewDistributedLock(l.client, key, l.ttl)
	if err := lock.AcquireWithin(ctx, wait, l.pollEvery); err != nil {
		return nil, err
	}
	return lock.Release, nil
}
