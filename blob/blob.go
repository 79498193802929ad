// Package blob keeps one application-defined value in a file and shares it
// between processes and, inside a process, between any number of handles.
//
// A Handle caches the decoded value. Every access goes through a view:
//
//	h, err := blob.Open[Config](ctx, "/var/lib/app/config.json")
//	w, err := h.GetMut(ctx)
//	w.Value().Count++
//	err = w.Release(ctx) // commits, then unlocks
//
// Get and GetMut take the cross-process lock first (shared or exclusive) and
// reload the cached value when the lock reports that another holder has
// written since this handle last looked. Releasing a write view writes the
// value to a staging file and renames it over the backing file while both the
// in-process and the cross-process locks are still held.
//
// A Handle hands out one view at a time; acquiring a second view from the
// same Handle blocks until the first is released. Use Clone to give each
// concurrent call site its own Handle over the same cached value. A goroutine
// must not hold a view from one clone while acquiring a conflicting view from
// another: flock(2) makes clones exclude each other like separate processes,
// so that deadlocks.
package blob

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/atomblob/lock"
	blobprogress "github.com/projecteru2/atomblob/progress/blob"
	"github.com/projecteru2/atomblob/storage"
	"github.com/projecteru2/atomblob/types"
	"github.com/projecteru2/atomblob/utils"
)

// compile-time interface check.
var _ storage.Store[struct{}] = (*Handle[struct{}])(nil)

// cell is the cached copy shared by all clones of a Handle.
type cell[T any] struct {
	mu    sync.RWMutex
	value T

	// stale forces the next acquisition to reload regardless of lock state.
	// Set when the in-memory value may differ from disk: a failed commit or
	// reload, or a discarded write view.
	stale atomic.Bool
	// poisoned is permanent.
	poisoned atomic.Bool
}

// Handle is a per-call-site accessor of a blob. Clones share the cached copy,
// path and options; each clone owns its lock session.
type Handle[T any] struct {
	session  lock.Session
	cell     *cell[T]
	path     string
	lockPath string
	opts     *options
}

// Open prepares a Handle for the backing file at path. An existing file is
// decoded under a shared lock; a missing file yields the default value (the
// zero T, passed through storage.Initer if implemented); a file that cannot
// be decoded fails with types.ErrDecode. Nothing is written.
func Open[T any](ctx context.Context, path string, opts ...Option) (*Handle[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	lockPath := utils.LockPath(path)
	h := &Handle[T]{
		session:  o.opener(lockPath),
		cell:     &cell[T]{},
		path:     path,
		lockPath: lockPath,
		opts:     o,
	}

	g, err := h.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	value, found, err := h.load(ctx, blobprogress.PhaseOpen)
	if err != nil {
		h.abort(ctx, g)
		return nil, err
	}
	h.cell.value = value
	if err := h.releaseGuard(ctx, g); err != nil {
		return nil, err
	}

	logger := log.WithFunc("blob.Open")
	if found {
		logger.Debugf(ctx, "loaded existing blob %s", path)
	} else {
		logger.Debugf(ctx, "created new blob %s", path)
	}
	return h, nil
}

// Clone returns a Handle sharing this one's cached copy, path and options,
// with its own lock session on the same lock file.
func (h *Handle[T]) Clone() *Handle[T] {
	return &Handle[T]{
		session:  h.opts.opener(h.lockPath),
		cell:     h.cell,
		path:     h.path,
		lockPath: h.lockPath,
		opts:     h.opts,
	}
}

// Path returns the backing file path.
func (h *Handle[T]) Path() string { return h.path }

// LockPath returns the lock file path.
func (h *Handle[T]) LockPath() string { return h.lockPath }

// Get acquires a shared lock, reloads the cached copy if it is stale, and
// returns a read view. It blocks while an exclusive holder exists.
func (h *Handle[T]) Get(ctx context.Context) (*ReadView[T], error) {
	g, err := h.acquireLive(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := h.refreshShared(ctx, g.State()); err != nil {
		h.abort(ctx, g)
		return nil, err
	}
	if h.cell.poisoned.Load() {
		h.cell.mu.RUnlock()
		h.abort(ctx, g)
		return nil, types.Poisoned(h.path)
	}
	return &ReadView[T]{h: h, guard: g}, nil
}

// GetMut acquires an exclusive lock, reloads the cached copy if it is stale,
// and returns a write view. The view must be released; releasing commits.
func (h *Handle[T]) GetMut(ctx context.Context) (*WriteView[T], error) {
	g, err := h.acquireLive(ctx, true)
	if err != nil {
		return nil, err
	}
	h.cell.mu.Lock()
	if h.cell.poisoned.Load() {
		h.cell.mu.Unlock()
		h.abort(ctx, g)
		return nil, types.Poisoned(h.path)
	}
	if g.State() == lock.Dirty || h.cell.stale.Load() {
		if err := h.reloadLocked(ctx, g.State()); err != nil {
			h.cell.mu.Unlock()
			h.abort(ctx, g)
			return nil, err
		}
	}
	return &WriteView[T]{h: h, guard: g}, nil
}

func (h *Handle[T]) acquireLive(ctx context.Context, exclusive bool) (lock.Guard, error) {
	if h.cell.poisoned.Load() {
		return nil, types.Poisoned(h.path)
	}
	return h.acquire(ctx, exclusive)
}

// refreshShared brings the cached copy up to date under a shared guard and
// returns with the cell read lock held.
//
// Every holder of the cell lock also holds a guard, and no exclusive guard
// can coexist with ours, so when the cell lock is busy its holder has
// already made the copy current (or is about to, or marks it stale on
// failure). Waiting for it instead would deadlock a goroutine that reads
// through two clones at once.
func (h *Handle[T]) refreshShared(ctx context.Context, state lock.State) error {
	reload := state == lock.Dirty
	for {
		if reload || h.cell.stale.Load() {
			if h.cell.mu.TryLock() {
				err := h.reloadLocked(ctx, state)
				h.cell.mu.Unlock()
				if err != nil {
					return err
				}
			}
		}
		h.cell.mu.RLock()
		if !h.cell.stale.Load() {
			return nil
		}
		// A concurrent reload failed after we skipped ours.
		h.cell.mu.RUnlock()
		reload = true
	}
}

// reloadLocked replaces the cached value with the on-disk one; the caller
// holds the cell write lock. On failure the cached value is kept but marked
// stale so it is never served as current.
func (h *Handle[T]) reloadLocked(ctx context.Context, state lock.State) error {
	value, _, err := h.load(ctx, blobprogress.PhaseReload)
	if err != nil {
		h.cell.stale.Store(true)
		return err
	}
	h.cell.value = value
	h.cell.stale.Store(false)
	log.WithFunc("blob.reload").Debugf(ctx, "reloaded blob %s (lock %s)", h.path, state)
	return nil
}

func (h *Handle[T]) load(_ context.Context, phase blobprogress.Phase) (T, bool, error) {
	start := time.Now()
	value, found, err := storage.LoadOrDefault[T](h.path, h.opts.codec)
	h.emit(blobprogress.Event{Phase: phase, Path: h.path, Found: found, Duration: time.Since(start), Err: err})
	return value, found, err
}

// commit persists the current value; the caller holds the cell write lock.
func (h *Handle[T]) commit(ctx context.Context, implicit bool) error {
	start := time.Now()
	err := storage.Save(h.path, &h.cell.value, h.opts.codec, h.opts.save)
	h.emit(blobprogress.Event{Phase: blobprogress.PhaseCommit, Path: h.path, Implicit: implicit, Duration: time.Since(start), Err: err})
	if err != nil {
		h.cell.stale.Store(true)
		log.WithFunc("blob.commit").Warnf(ctx, "commit %s failed, cached copy will be reloaded: %v", h.path, err)
		return &types.CommitError{Path: h.path, Implicit: implicit, Err: err}
	}
	log.WithFunc("blob.commit").Debugf(ctx, "new blob committed: %s", h.path)
	return nil
}

func (h *Handle[T]) poison(ctx context.Context) {
	h.cell.poisoned.Store(true)
	h.cell.stale.Store(true)
	h.emit(blobprogress.Event{Phase: blobprogress.PhasePoison, Path: h.path})
	log.WithFunc("blob.poison").Warnf(ctx, "blob %s poisoned by panic during write", h.path)
}

func (h *Handle[T]) acquire(ctx context.Context, exclusive bool) (lock.Guard, error) {
	var (
		g   lock.Guard
		err error
		op  = "acquire shared"
	)
	if exclusive {
		op = "acquire exclusive"
		g, err = h.session.AcquireExclusive(ctx)
	} else {
		g, err = h.session.AcquireShared(ctx)
	}
	if err != nil {
		return nil, &types.LockError{Op: op, Path: h.lockPath, Err: err}
	}
	return g, nil
}

func (h *Handle[T]) releaseGuard(ctx context.Context, g lock.Guard) error {
	if err := g.Release(ctx); err != nil {
		return &types.LockError{Op: "release", Path: h.lockPath, Err: err}
	}
	return nil
}

// abort releases g on an error path where the caller already has an error
// to report.
func (h *Handle[T]) abort(ctx context.Context, g lock.Guard) {
	if err := h.releaseGuard(ctx, g); err != nil {
		log.WithFunc("blob.abort").Warnf(ctx, "%v", err)
	}
}

func (h *Handle[T]) emit(e blobprogress.Event) {
	h.opts.tracker.OnEvent(e)
}
