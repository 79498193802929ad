package blob

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/atomblob/types"
)

func TestExplicitCommitOnce(t *testing.T) {
	path := blobPath(t)
	h := open[counter](t, path)

	w, err := h.GetMut(context.Background())
	require.NoError(t, err)
	w.Value().Count = 3
	require.NoError(t, w.Commit())
	assert.True(t, w.Committed())
	assert.Equal(t, 3, onDisk(t, path).Count, "commit writes while the view is live")

	assert.ErrorIs(t, w.Commit(), types.ErrAlreadyCommitted)

	w.Value().Count = 4
	require.NoError(t, w.Release(context.Background()))
	assert.Equal(t, 3, onDisk(t, path).Count, "no second commit at release")
	assert.Equal(t, 3, read(t, h).Count, "post-commit changes are not served")
}

func TestCommitAfterRelease(t *testing.T) {
	h := open[counter](t, blobPath(t))
	w, err := h.GetMut(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Release(context.Background()))

	assert.ErrorIs(t, w.Commit(), types.ErrReleased)
	assert.NoError(t, w.Release(context.Background()), "release is idempotent")
	assert.NoError(t, w.Discard(context.Background()))
}

func TestReleaseCommitsImplicitly(t *testing.T) {
	path := blobPath(t)
	h := open[counter](t, path)

	w, err := h.GetMut(context.Background())
	require.NoError(t, err)
	w.Value().Count = 8
	assert.False(t, w.Committed())
	require.NoError(t, w.Close())
	assert.True(t, w.Committed())

	assert.Equal(t, 8, onDisk(t, path).Count)
}

func TestImplicitCommitFailureIsReported(t *testing.T) {
	path := blobPath(t)
	c := &flakyCodec{}
	h := open[counter](t, path, WithCodec(c))
	set(t, h, 1)

	c.fail.Store(true)
	w, err := h.GetMut(context.Background())
	require.NoError(t, err)
	w.Value().Count = 2
	err = w.Release(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCommitFailed)
	assert.ErrorIs(t, err, types.ErrIO)

	var commitErr *types.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.True(t, commitErr.Implicit)
	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, types.StageEncode, ioErr.Stage)

	c.fail.Store(false)
	assert.Equal(t, 1, onDisk(t, path).Count, "target untouched by the failed commit")
	assert.Equal(t, 1, read(t, h).Count, "unpersisted change is not served")
	assert.Equal(t, 1, read(t, h.Clone()).Count)
}

func TestExplicitCommitFailureIsSingleAttempt(t *testing.T) {
	path := blobPath(t)
	c := &flakyCodec{}
	h := open[counter](t, path, WithCodec(c))

	c.fail.Store(true)
	w, err := h.GetMut(context.Background())
	require.NoError(t, err)
	w.Value().Count = 5

	err = w.Commit()
	var commitErr *types.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.False(t, commitErr.Implicit)
	assert.False(t, w.Committed())

	c.fail.Store(false)
	require.NoError(t, w.Release(context.Background()), "release does not retry the commit")
	assert.NoFileExists(t, path)
	assert.Equal(t, 0, read(t, h).Count)
}

func TestDiscard(t *testing.T) {
	path := blobPath(t)
	h := open[counter](t, path)
	set(t, h, 6)

	w, err := h.GetMut(context.Background())
	require.NoError(t, err)
	w.Value().Count = 60
	require.NoError(t, w.Discard(context.Background()))
	assert.False(t, w.Committed())

	assert.Equal(t, 6, onDisk(t, path).Count)
	assert.Equal(t, 6, read(t, h).Count)
}

func TestReadViewRelease(t *testing.T) {
	h := open[counter](t, blobPath(t))
	v, err := h.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, v.Close())
	require.NoError(t, v.Release(context.Background()))

	// Both locks are free again.
	set(t, h, 1)
}

func TestReadDoesNotWrite(t *testing.T) {
	path := blobPath(t)
	h := open[counter](t, path)
	set(t, h, 2)
	before, err := os.Stat(path)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 2, read(t, h).Count)
	}

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}
