package flock

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"

	"github.com/projecteru2/atomblob/lock"
)

const (
	retryDelay = 100 * time.Millisecond
	// genWidth fits any int64; every write covers the same bytes.
	genWidth = 19
)

// compile-time interface checks.
var (
	_ lock.Session = (*Session)(nil)
	_ lock.Guard   = (*Guard)(nil)
	_ lock.Opener  = Open
)

// Session implements lock.Session on top of flock(2), combining:
//   - In-process serialization via a size-1 buffered channel. An acquisition
//     takes the token by sending to ch and the guard's Release returns it.
//     Using a channel (rather than sync.Mutex) enables ctx-aware waiting.
//   - Cross-process exclusion via flock(2) with a fresh fd on every
//     acquisition. flock locks belong to the open file description, so two
//     sessions in the same process exclude each other just like two
//     processes do.
//   - A staleness signal: the lock file holds a decimal generation counter
//     that every exclusive release increments. A session remembers the
//     generation it saw at its last release; any difference at the next
//     acquisition reports lock.Dirty.
type Session struct {
	path string
	ch   chan struct{}

	// seen and synced are only touched by the token holder.
	seen   int64
	synced bool
}

// New creates a Session for the given lock path. Nothing is opened yet.
func New(path string) *Session {
	return &Session{path: path, ch: make(chan struct{}, 1)}
}

// Open is New typed as a lock.Opener.
func Open(path string) lock.Session { return New(path) }

// Path returns the lock file path.
func (s *Session) Path() string { return s.path }

// AcquireShared blocks until the lock can be held in shared mode.
func (s *Session) AcquireShared(ctx context.Context) (lock.Guard, error) {
	return s.acquire(ctx, false)
}

// AcquireExclusive blocks until the lock can be held in exclusive mode.
func (s *Session) AcquireExclusive(ctx context.Context) (lock.Guard, error) {
	return s.acquire(ctx, true)
}

func (s *Session) acquire(ctx context.Context, exclusive bool) (*Guard, error) {
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire lock %s: %w", s.path, ctx.Err())
	}

	fl := flock.New(s.path)
	if err := take(ctx, fl, exclusive); err != nil {
		<-s.ch
		return nil, fmt.Errorf("acquire flock %s: %w", s.path, err)
	}
	gen, err := ReadGeneration(s.path)
	if err != nil {
		_ = fl.Unlock()
		<-s.ch
		return nil, err
	}

	state := lock.Clean
	if !s.synced || gen != s.seen {
		state = lock.Dirty
	}
	return &Guard{session: s, fl: fl, exclusive: exclusive, gen: gen, state: state}, nil
}

// take blocks in the kernel when ctx can never be cancelled, and polls with
// TryLockContext otherwise so that cancellation is honoured.
func take(ctx context.Context, fl *flock.Flock, exclusive bool) error {
	if ctx.Done() == nil {
		if exclusive {
			return fl.Lock()
		}
		return fl.RLock()
	}
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, retryDelay)
	} else {
		ok, err = fl.TryRLockContext(ctx, retryDelay)
	}
	if err != nil {
		return err
	}
	if !ok {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.New("lock not acquired")
	}
	return nil
}

// Guard is a held flock acquisition.
type Guard struct {
	session   *Session
	fl        *flock.Flock
	exclusive bool
	gen       int64
	state     lock.State
	released  bool
}

// State implements lock.Guard.
func (g *Guard) State() lock.State { return g.state }

// Exclusive implements lock.Guard.
func (g *Guard) Exclusive() bool { return g.exclusive }

// Generation is the counter value read at acquisition.
func (g *Guard) Generation() int64 { return g.gen }

// Release implements lock.Guard. An exclusive guard bumps the generation
// before unlocking so the next holder from any other session sees Dirty.
func (g *Guard) Release(_ context.Context) error {
	if g.released {
		return nil
	}
	g.released = true
	s := g.session

	var genErr error
	gen := g.gen
	if g.exclusive {
		gen++
		genErr = writeGeneration(s.path, gen)
	}
	unlockErr := g.fl.Unlock()

	// A failed bump leaves the session unsynced so its own next acquisition
	// reloads; other sessions cannot be told.
	s.seen, s.synced = gen, genErr == nil
	<-s.ch

	if genErr != nil {
		return genErr
	}
	if unlockErr != nil {
		return fmt.Errorf("release flock %s: %w", s.path, unlockErr)
	}
	return nil
}

// ReadGeneration returns the counter stored in the lock file at path; an
// absent or empty file is generation 0. The caller should hold the lock.
func ReadGeneration(path string) (int64, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // lock file derived from backing path
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read generation %s: %w", path, err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, nil
	}
	gen, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %s: %w", path, err)
	}
	return gen, nil
}

// writeGeneration overwrites the counter in place with a fixed-width value.
// The file is never truncated, so a crash mid-write cannot leave it empty,
// and it must not be replaced by rename: the flock is attached to the inode.
func writeGeneration(path string, gen int64) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o600) //nolint:gosec // lock file derived from backing path
	if err != nil {
		return fmt.Errorf("write generation %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close generation %s: %w", path, cerr)
		}
	}()
	if _, err := f.WriteAt(fmt.Appendf(nil, "%0*d\n", genWidth, gen), 0); err != nil {
		return fmt.Errorf("write generation %s: %w", path, err)
	}
	return nil
}
