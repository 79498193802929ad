package storage

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/projecteru2/atomblob/codec"
	"github.com/projecteru2/atomblob/types"
	"github.com/projecteru2/atomblob/utils"
)

// Options controls how Save writes the backing file.
type Options struct {
	// Perm is applied to the staging file and therefore to the final file.
	Perm os.FileMode
	// Sync fsyncs the staging file before the rename and the directory after.
	Sync bool
}

// DefaultOptions returns 0644 permissions with fsync enabled.
func DefaultOptions() Options {
	return Options{Perm: 0o644, Sync: true}
}

// Load decodes the file at path into a T.
//
//   - missing file: (zero, false, nil); the caller decides the default.
//   - unreadable or undecodable file: (zero, true, err) where err is a
//     *types.IOError (stage open) or a *types.DecodeError.
//   - otherwise (v, true, nil).
//
// If *T implements Initer, Init() is called on the decoded value.
func Load[T any](path string, c codec.Codec) (T, bool, error) {
	var data T
	f, err := os.Open(path) //nolint:gosec // caller-supplied backing path
	if err != nil {
		if os.IsNotExist(err) {
			return data, false, nil
		}
		return data, true, &types.IOError{Stage: types.StageOpen, Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck

	if err := c.Decode(bufio.NewReader(f), &data); err != nil {
		var zero T
		return zero, true, &types.DecodeError{Path: path, Err: err}
	}
	initData(&data)
	return data, true, nil
}

// LoadOrDefault is Load with a missing file mapped to Default[T]().
func LoadOrDefault[T any](path string, c codec.Codec) (T, bool, error) {
	data, found, err := Load[T](path, c)
	if err != nil {
		return data, found, err
	}
	if !found {
		return Default[T](), false, nil
	}
	return data, true, nil
}

// Save encodes v with c and atomically replaces the file at path.
// Failures are *types.IOError values naming the failing stage; the file at
// path is left untouched by any failure before the rename.
func Save(path string, v any, c codec.Codec, opts Options) error {
	return utils.AtomicWrite(path, opts.Perm, opts.Sync, func(w io.Writer) error {
		return c.Encode(w, v)
	})
}

// CleanStaleTemps removes staging files of path older than maxAge. Such files
// are left behind only when a writer died between creating and renaming them.
// The caller should hold the exclusive lock so no live writer is racing.
func CleanStaleTemps(ctx context.Context, path string, maxAge time.Duration) ([]string, []error) {
	cutoff := time.Now().Add(-maxAge)
	return utils.RemoveMatching(ctx, filepath.Dir(path), func(e os.DirEntry) bool {
		if e.IsDir() || !utils.IsTempOf(path, e.Name()) {
			return false
		}
		info, err := e.Info()
		return err == nil && info.ModTime().Before(cutoff)
	})
}
