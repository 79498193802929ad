package utils

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/atomblob/types"
)

// AtomicWrite streams the output of write into a uniquely named sibling temp
// file (see TempPath) and renames it over path once it is fully written and
// flushed. With sync set the temp file is fsynced before the rename and the
// parent directory after it. The target is never opened for writing, so
// readers see either the old or the new content. On any failure the temp
// file is removed and the returned *types.IOError names the failing stage.
func AtomicWrite(path string, perm os.FileMode, sync bool, write func(io.Writer) error) (err error) {
	tmpPath := TempPath(path)
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm) //nolint:gosec // sibling of caller-supplied path
	if err != nil {
		return &types.IOError{Stage: types.StageCreate, Path: tmpPath, Err: err}
	}

	closed := false
	defer func() {
		// On any error the temp file is cleaned up.
		if err != nil {
			if !closed {
				_ = tmp.Close()
			}
			_ = os.Remove(tmpPath)
		}
	}()

	if err = tmp.Chmod(perm); err != nil {
		return &types.IOError{Stage: types.StageCreate, Path: tmpPath, Err: err}
	}
	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return &types.IOError{Stage: types.StageEncode, Path: tmpPath, Err: err}
	}
	if err = bw.Flush(); err != nil {
		return &types.IOError{Stage: types.StageFlush, Path: tmpPath, Err: err}
	}
	if sync {
		if err = tmp.Sync(); err != nil {
			return &types.IOError{Stage: types.StageSync, Path: tmpPath, Err: err}
		}
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return &types.IOError{Stage: types.StageClose, Path: tmpPath, Err: err}
	}
	// os.Rename replaces atomically on POSIX; on Windows Go uses
	// MoveFileEx(MOVEFILE_REPLACE_EXISTING), which is not guaranteed atomic.
	if err = os.Rename(tmpPath, path); err != nil {
		return &types.IOError{Stage: types.StageReplace, Path: path, Err: err}
	}
	if sync {
		if dirErr := SyncParentDir(filepath.Dir(path)); dirErr != nil {
			// The rename already happened; the temp file is gone.
			return &types.IOError{Stage: types.StageSync, Path: filepath.Dir(path), Err: dirErr}
		}
	}
	return nil
}

// SyncParentDir fsyncs the directory containing the file to ensure the directory entry is persisted.
func SyncParentDir(dir string) error {
	parent, err := os.Open(dir) //nolint:gosec // directory is derived from the backing path
	if err != nil {
		return err
	}
	defer parent.Close() //nolint:errcheck

	if err := parent.Sync(); err != nil &&
		!errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTSUP) && !errors.Is(err, syscall.EBADF) {
		return err
	}
	return nil
}
