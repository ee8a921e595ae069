// Package lock serialises identity resolution per owner so that concurrent
// requests naming the same unseen person cannot both create it.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotHeld is returned by an Unlock whose lease expired or was taken over.
var ErrNotHeld = errors.New("lock: not held")

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

// Locker acquires an owner-scoped exclusive lock, blocking until it is
// available or ctx is done.
type Locker interface {
	Lock(ctx context.Context, owner string) (Unlock, error)
}

// Local is an in-process Locker for single-instance deployments.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// slot is one owner's lock. refs counts the holder and the waiters; the slot
// is dropped from the map when it reaches zero.
type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, owner string) (Unlock, error) {
	l.mu.Lock()
	s, ok := l.slots[owner]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[owner] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(owner, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		err := ErrNotHeld
		once.Do(func() {
			<-s.ch
			l.release(owner, s)
			err = nil
		})
		return err
	}, nil
}

func (l *Local) release(owner string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, owner)
	}
}
