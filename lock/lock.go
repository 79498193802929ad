// Package lock defines the cross-process lock collaborator a blob relies on:
// shared/exclusive advisory locking plus a per-acquisition staleness signal.
package lock

import (
	"context"

	"github.com/cockroachdb/errors"
)

// State tells the holder of a Guard whether the protected resource may have
// changed since its session last released a lock.
type State int

const (
	// Clean: no exclusive holder released the lock since this session last did.
	Clean State = iota
	// Dirty: some holder performed an exclusive acquisition since, or the
	// session has never released a lock.
	Dirty
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// Guard is a held acquisition.
type Guard interface {
	// State is fixed at acquisition time.
	State() State
	// Exclusive reports the acquisition mode.
	Exclusive() bool
	// Release gives up the lock. Releasing an exclusive guard is the signal
	// that the resource was modified: any other session acquiring afterwards
	// observes Dirty. Release is idempotent.
	Release(ctx context.Context) error
}

// Session is bound to one lock path. Acquisitions through one session are
// serialized: a second Acquire blocks until the previous guard is released.
// Sessions are not shared between independent call sites.
type Session interface {
	Path() string
	// AcquireShared blocks until no exclusive holder exists.
	AcquireShared(ctx context.Context) (Guard, error)
	// AcquireExclusive blocks until there is no other holder at all.
	AcquireExclusive(ctx context.Context) (Guard, error)
}

// Opener opens a session on a lock path without acquiring anything.
type Opener func(path string) Session

// WithShared runs fn while holding a shared guard from s.
func WithShared(ctx context.Context, s Session, fn func(State) error) error {
	g, err := s.AcquireShared(ctx)
	if err != nil {
		return err
	}
	return run(ctx, g, fn)
}

// WithExclusive runs fn while holding an exclusive guard from s.
func WithExclusive(ctx context.Context, s Session, fn func(State) error) error {
	g, err := s.AcquireExclusive(ctx)
	if err != nil {
		return err
	}
	return run(ctx, g, fn)
}

func run(ctx context.Context, g Guard, fn func(State) error) (err error) {
	defer func() {
		err = errors.CombineErrors(err, g.Release(ctx))
	}()
	return fn(g.State())
}
