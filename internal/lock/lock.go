// Package lock implements a compare-and-swap distributed lock over a single
// well-known object key, built directly on internal/objstore's conditional
// write contract.
package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xufeisofly/bff/internal/bfferr"
	"github.com/xufeisofly/bff/internal/objstore"
)

// pollInterval is the acquire-or-block poll cadence. A var, not a const, so
// tests can shrink it instead of waiting out a real second per contended poll.
var pollInterval = 1 * time.Second

// Lock is a compare-and-swap lock over one object key in a Store. Acquire
// writes "locked_<workerKey>" with a conditional PUT that fails if the key
// already exists; Release only deletes the key if its value still matches
// this worker's own lock token.
type Lock struct {
	store     objstore.Store
	key       string
	workerKey string
}

// New returns a Lock over key, identifying this holder as workerKey.
func New(store objstore.Store, key, workerKey string) *Lock {
	return &Lock{store: store, key: key, workerKey: workerKey}
}

func (l *Lock) token() []byte {
	return []byte("locked_" + l.workerKey)
}

// TryAcquire attempts to acquire the lock once, without blocking.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	err := l.store.PutIfAbsent(ctx, l.key, l.token())
	if err == nil {
		return true, nil
	}
	var cpe *objstore.ConditionalPutError
	if errors.As(err, &cpe) {
		return false, nil
	}
	return false, err
}

// AcquireOrBlock polls at pollInterval until the lock is acquired or
// deadline elapses. deadline == -1 means block forever. Returns
// bfferr.ErrContention if the deadline elapses first.
func (l *Lock) AcquireOrBlock(ctx context.Context, deadline time.Duration) error {
	var deadlineAt time.Time
	hasDeadline := deadline >= 0
	if hasDeadline {
		deadlineAt = time.Now().Add(deadline)
	}

	for {
		acquired, err := l.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if hasDeadline && time.Now().After(deadlineAt) {
			return fmt.Errorf("%w: lock %s not acquired within %s", bfferr.ErrContention, l.key, deadline)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release deletes the lock's key only if its current value still matches
// this worker's token, leaving any other holder's lock untouched.
func (l *Lock) Release(ctx context.Context) error {
	r, err := l.store.Get(ctx, l.key)
	if errors.Is(err, objstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if string(body) != string(l.token()) {
		return nil
	}
	return l.store.Delete(ctx, l.key)
}
