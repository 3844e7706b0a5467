package transport

import "context"

// Lock is a mutual-exclusion lock whose acquisition honors a context.
//
// Releasing a Lock that is not held panics, like sync.Mutex.
type Lock struct {
	ch chan struct{}
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is held or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire acquires the lock if it is free and reports whether it did.
func (l *Lock) TryAcquire() bool {
	select {
	case l.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release unlocks the lock.
func (l *Lock) Release() {
	select {
	case <-l.ch:
	default:
		panic("transport: release of unlocked exchange lock")
	}
}

// Held reports whether the lock is currently held by someone.
func (l *Lock) Held() bool {
	return len(l.ch) == 1
}
