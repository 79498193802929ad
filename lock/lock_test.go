package lock_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/atomblob/lock"
	"github.com/projecteru2/atomblob/lock/flock"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "clean", lock.Clean.String())
	assert.Equal(t, "dirty", lock.Dirty.String())
	assert.Equal(t, "unknown", lock.State(9).String())
}

func TestWithSharedAndExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.flock")
	a, b := flock.New(path), flock.New(path)
	ctx := context.Background()

	var states []lock.State
	record := func(s lock.State) error {
		states = append(states, s)
		return nil
	}

	require.NoError(t, lock.WithShared(ctx, a, record))
	require.NoError(t, lock.WithShared(ctx, a, record))
	require.NoError(t, lock.WithExclusive(ctx, b, record))
	require.NoError(t, lock.WithShared(ctx, a, record))

	assert.Equal(t, []lock.State{lock.Dirty, lock.Clean, lock.Dirty, lock.Dirty}, states)
}

func TestWithReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.flock")
	s := flock.New(path)
	ctx := context.Background()

	boom := errors.New("boom")
	err := lock.WithExclusive(ctx, s, func(lock.State) error { return boom })
	assert.ErrorIs(t, err, boom)

	// The guard was released, so the same session can acquire again.
	require.NoError(t, lock.WithExclusive(ctx, s, func(lock.State) error { return nil }))
}

type stuckGuard struct{ err error }

func (g stuckGuard) State() lock.State             { return lock.Clean }
func (g stuckGuard) Exclusive() bool               { return false }
func (g stuckGuard) Release(context.Context) error { return g.err }

type stuckSession struct{ err error }

func (s stuckSession) Path() string { return "stuck" }

func (s stuckSession) AcquireShared(context.Context) (lock.Guard, error) {
	return stuckGuard(s), nil
}

func (s stuckSession) AcquireExclusive(context.Context) (lock.Guard, error) {
	return stuckGuard(s), nil
}

func TestWithCombinesReleaseError(t *testing.T) {
	ctx := context.Background()
	unlockErr := errors.New("unlock failed")
	s := stuckSession{err: unlockErr}

	err := lock.WithShared(ctx, s, func(lock.State) error { return nil })
	assert.ErrorIs(t, err, unlockErr)

	boom := errors.New("boom")
	err = lock.WithExclusive(ctx, s, func(lock.State) error { return boom })
	assert.ErrorIs(t, err, boom, "the callback error stays primary")
}
