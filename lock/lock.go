// ABOUTME: Process-wide advisory run lock with bounded acquisition retries
// ABOUTME: Backed by the SQLite lease table or by Redis when several hosts share one store
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/retry"
)

// ErrHeld is returned by a single acquisition attempt when another owner holds the lock.
var ErrHeld = errors.New("lock held by another owner")

// ErrLost is returned by Refresh when the lease expired and another owner took it.
var ErrLost = errors.New("lock lost to another owner")

// Locker is a non-blocking named lease.
type Locker interface {
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	locker Locker
	name   string
	owner  string
	ttl    time.Duration
	done   bool
}

// Name returns the lock name.
func (l *Lease) Name() string { return l.name }

// Owner returns the owner token.
func (l *Lease) Owner() string { return l.owner }

// Refresh extends the lease by its TTL.
func (l *Lease) Refresh(ctx context.Context) error {
	if l.done {
		return ErrLost
	}
	ok, err := l.locker.TryAcquire(ctx, l.name, l.owner, l.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLost
	}
	return nil
}

// Release gives the lock back.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.done {
		return nil
	}
	l.done = true
	return l.locker.Release(ctx, l.name, l.owner)
}

// Acquire tries to take the lock under the given retry policy and returns a
// LockTimeout error once the attempts are used up.
func Acquire(ctx context.Context, locker Locker, name, owner string, ttl time.Duration, policy retry.Policy) (*Lease, error) {
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		ok, err := locker.TryAcquire(ctx, name, owner, ttl)
		if err != nil {
			return fmt.Errorf("attempt %d: %w", attempt, err)
		}
		if !ok {
			return ErrHeld
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		attempts := policy.Attempts
		if attempts < 1 {
			attempts = 1
		}
		return nil, apperr.LockTimeout(name, attempts, err)
	}
	return &Lease{locker: locker, name: name, owner: owner, ttl: ttl}, nil
}
