package types

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrIO marks every IOError regardless of stage.
	ErrIO = errors.New("blob io failure")
	// ErrDecode is reported when the backing file exists but cannot be decoded.
	ErrDecode = errors.New("blob decode failure")
	// ErrLock is reported when the lock collaborator fails to acquire or release.
	ErrLock = errors.New("blob lock failure")
	// ErrPoisoned is unrecoverable: a panic escaped while a write view was held,
	// so the cached copy cannot be trusted for the rest of the process.
	ErrPoisoned = errors.New("blob poisoned by panic during write")
	// ErrCommitFailed marks a failed commit attempt of a write view.
	ErrCommitFailed = errors.New("blob commit failed")
	// ErrAlreadyCommitted is returned by a second Commit on the same view.
	ErrAlreadyCommitted = errors.New("blob view already committed")
	// ErrReleased is returned when a view is used after Release.
	ErrReleased = errors.New("blob view already released")
)

// Stage identifies the step of a file operation that failed.
type Stage string

const (
	StageOpen    Stage = "open"
	StageCreate  Stage = "create temp"
	StageEncode  Stage = "encode"
	StageFlush   Stage = "flush"
	StageSync    Stage = "sync"
	StageClose   Stage = "close"
	StageReplace Stage = "replace"
)

// IOError records a filesystem failure together with the stage it happened in.
type IOError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is matches ErrIO.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// DecodeError means the file at Path exists but does not hold a valid encoding.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// LockError wraps a failure reported by the lock collaborator.
type LockError struct {
	Op   string
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

// Is matches ErrLock.
func (e *LockError) Is(target error) bool { return target == ErrLock }

// CommitError wraps the failure of a write view's commit. Implicit is true
// when the commit ran as part of Release rather than an explicit Commit call.
type CommitError struct {
	Path     string
	Implicit bool
	Err      error
}

func (e *CommitError) Error() string {
	kind := "commit"
	if e.Implicit {
		kind = "implicit commit"
	}
	return fmt.Sprintf("%s %s: %v", kind, e.Path, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Is matches ErrCommitFailed.
func (e *CommitError) Is(target error) bool { return target == ErrCommitFailed }

// Poisoned returns ErrPoisoned annotated with the backing path.
func Poisoned(path string) error {
	return errors.Wrapf(ErrPoisoned, "blob %s", path)
}
