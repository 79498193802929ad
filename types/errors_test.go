package types

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIOErrorMatchesSentinelAndCause(t *testing.T) {
	err := error(&IOError{Stage: StageReplace, Path: "/tmp/x", Err: fs.ErrPermission})

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.NotErrorIs(t, err, ErrDecode)
	assert.Equal(t, "replace /tmp/x: permission denied", err.Error())

	var ioErr *IOError
	assert.True(t, errors.As(err, &ioErr))
	assert.Equal(t, StageReplace, ioErr.Stage)
}

func TestDecodeAndLockErrors(t *testing.T) {
	cause := errors.New("unexpected EOF")

	dec := error(&DecodeError{Path: "x", Err: cause})
	assert.ErrorIs(t, dec, ErrDecode)
	assert.ErrorIs(t, dec, cause)

	lk := error(&LockError{Op: "acquire shared", Path: "x.flock", Err: cause})
	assert.ErrorIs(t, lk, ErrLock)
	assert.Contains(t, lk.Error(), "acquire shared x.flock")
}

func TestCommitErrorKeepsIOStage(t *testing.T) {
	err := error(&CommitError{Path: "x", Implicit: true, Err: &IOError{Stage: StageCreate, Path: "x.tmp", Err: fs.ErrNotExist}})

	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "implicit commit x")
}

func TestPoisoned(t *testing.T) {
	assert.ErrorIs(t, Poisoned("x"), ErrPoisoned)
}

func TestDocumentInitAndTouch(t *testing.T) {
	var d Document
	d.Init()
	d.Counters["b"] = 2
	d.Counters["a"] = 1
	d.Fields["z"] = "last"

	assert.Equal(t, []string{"a", "b"}, d.CounterNames())
	assert.Equal(t, []string{"z"}, d.FieldNames())

	d.Touch(d.UpdatedAt)
	d.Touch(d.UpdatedAt)
	assert.Equal(t, int64(2), d.Revision)
}
