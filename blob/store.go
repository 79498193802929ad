package blob

import (
	"context"

	"github.com/cockroachdb/errors"
)

// With passes the current value to fn under a read view and always releases
// it. fn must not modify the value or retain the pointer.
func (h *Handle[T]) With(ctx context.Context, fn func(*T) error) (err error) {
	v, err := h.Get(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, v.Release(ctx))
	}()
	return fn(v.Value())
}

// Update runs fn under a write view. If fn returns nil the value is
// committed; otherwise the change is discarded and fn's error returned.
//
// A panic in fn poisons the blob for the whole process: both locks are
// released without committing, the panic is re-raised, and every later Get
// or GetMut on any clone fails with types.ErrPoisoned.
func (h *Handle[T]) Update(ctx context.Context, fn func(*T) error) error {
	w, err := h.GetMut(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			h.poison(ctx)
			_ = w.Discard(ctx)
			panic(r)
		}
	}()

	if err := fn(w.Value()); err != nil {
		return errors.CombineErrors(err, w.Discard(ctx))
	}
	return w.Release(ctx)
}
