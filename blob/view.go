package blob

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/atomblob/lock"
	blobprogress "github.com/projecteru2/atomblob/progress/blob"
	"github.com/projecteru2/atomblob/types"
)

// ReadView is a shared, read-only borrow of the cached value, valid until
// Release. Views are not safe for concurrent use.
type ReadView[T any] struct {
	h        *Handle[T]
	guard    lock.Guard
	released bool
}

// Value returns the cached value. It must not be modified, and the pointer
// must not be used after Release.
func (v *ReadView[T]) Value() *T { return &v.h.cell.value }

// State reports what the lock said at acquisition; Dirty means the value was
// reloaded from disk for this view.
func (v *ReadView[T]) State() lock.State { return v.guard.State() }

// Release drops the in-process read lock and then the shared lock.
// Calling it more than once is a no-op.
func (v *ReadView[T]) Release(ctx context.Context) error {
	if v.released {
		return nil
	}
	v.released = true
	v.h.cell.mu.RUnlock()
	return v.h.releaseGuard(ctx, v.guard)
}

// Close is Release with a background context.
func (v *ReadView[T]) Close() error { return v.Release(context.Background()) }

// WriteView is an exclusive, mutable borrow of the cached value, valid until
// Release or Discard. Each view makes exactly one commit attempt: either an
// explicit Commit or the implicit one in Release.
//
// Release MUST be called. Its error is the only channel for an implicit
// commit failure; callers that cannot act on it there should call Commit
// explicitly first. After any failed commit the cached copy is reloaded from
// disk on the next acquisition, so unpersisted changes are never served.
type WriteView[T any] struct {
	h         *Handle[T]
	guard     lock.Guard
	attempted bool
	committed bool
	released  bool
}

// Value returns the cached value for modification. The pointer must not be
// used after Release.
func (w *WriteView[T]) Value() *T { return &w.h.cell.value }

// State reports what the lock said at acquisition.
func (w *WriteView[T]) State() lock.State { return w.guard.State() }

// Committed reports whether a commit succeeded.
func (w *WriteView[T]) Committed() bool { return w.committed }

// Commit encodes the value and atomically replaces the backing file while
// both locks are held. It may be called at most once per view; modifications
// made after it are dropped at Release.
func (w *WriteView[T]) Commit() error {
	return w.CommitContext(context.Background())
}

// CommitContext is Commit with a context for logging.
func (w *WriteView[T]) CommitContext(ctx context.Context) error {
	switch {
	case w.released:
		return errors.Wrapf(types.ErrReleased, "commit %s", w.h.path)
	case w.attempted:
		return errors.Wrapf(types.ErrAlreadyCommitted, "commit %s", w.h.path)
	}
	return w.commit(ctx, false)
}

func (w *WriteView[T]) commit(ctx context.Context, implicit bool) error {
	w.attempted = true
	if err := w.h.commit(ctx, implicit); err != nil {
		return err
	}
	w.committed = true
	return nil
}

// Release commits if no commit was attempted yet, then drops the in-process
// write lock, then the exclusive lock. The returned error carries a failed
// implicit commit (types.ErrCommitFailed) and/or a lock release failure
// (types.ErrLock). Calling it more than once is a no-op.
func (w *WriteView[T]) Release(ctx context.Context) error {
	if w.released {
		return nil
	}
	w.released = true

	var commitErr error
	if w.attempted {
		// Changes made after an explicit Commit are not persisted; make the
		// next acquisition reload rather than serve them.
		w.h.cell.stale.Store(true)
	} else {
		commitErr = w.commit(ctx, true)
	}
	w.h.cell.mu.Unlock()
	return errors.CombineErrors(commitErr, w.h.releaseGuard(ctx, w.guard))
}

// Close is Release with a background context, so a WriteView is an io.Closer.
func (w *WriteView[T]) Close() error { return w.Release(context.Background()) }

// Discard releases both locks without committing (again). The cached copy
// is marked stale so the next acquisition reloads the on-disk value.
func (w *WriteView[T]) Discard(ctx context.Context) error {
	if w.released {
		return nil
	}
	w.released = true

	w.h.cell.stale.Store(true)
	w.h.emit(blobprogress.Event{Phase: blobprogress.PhaseDiscard, Path: w.h.path})
	log.WithFunc("blob.Discard").Debugf(ctx, "discarded write to %s", w.h.path)
	w.h.cell.mu.Unlock()
	return w.h.releaseGuard(ctx, w.guard)
}
