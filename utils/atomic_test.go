package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/atomblob/types"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func tempFiles(t *testing.T, dir, target string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if IsTempOf(target, e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestAtomicWriteCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.json")

	require.NoError(t, AtomicWrite(path, 0o644, true, writeString("first")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, AtomicWrite(path, 0o644, false, writeString("second")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	assert.Empty(t, tempFiles(t, dir, path))
}

func TestAtomicWriteEncodeFailureKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	boom := errors.New("boom")
	err := AtomicWrite(path, 0o644, true, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIO)
	assert.ErrorIs(t, err, boom)
	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, types.StageEncode, ioErr.Stage)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	assert.Empty(t, tempFiles(t, dir, path))
}

func TestAtomicWriteEncodeFailureLeavesAbsentTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.json")

	err := AtomicWrite(path, 0o644, false, func(io.Writer) error { return errors.New("nope") })
	require.Error(t, err)
	assert.NoFileExists(t, path)
	assert.Empty(t, tempFiles(t, dir, path))
}

func TestAtomicWriteCreateStage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "blob.json")

	err := AtomicWrite(path, 0o644, false, writeString("x"))
	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, types.StageCreate, ioErr.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAtomicWriteReplaceStage(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory at the target cannot be replaced by a file.
	path := filepath.Join(dir, "blob.json")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "occupied"), 0o750))

	err := AtomicWrite(path, 0o644, false, writeString("x"))
	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, types.StageReplace, ioErr.Stage)
	assert.Empty(t, tempFiles(t, dir, path))
}

func TestSyncParentDir(t *testing.T) {
	assert.NoError(t, SyncParentDir(t.TempDir()))
	assert.Error(t, SyncParentDir(filepath.Join(t.TempDir(), "missing")))
}
