package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/projecteru2/core/log"
)

const (
	// LockExt replaces the backing file's extension to form the lock file.
	LockExt = "flock"
	// TempExt is the final extension of staging files.
	TempExt = "tmp"
	// StaleTempAge is the age threshold for removing stale temp files during GC.
	StaleTempAge = time.Hour
)

var tempSuffix = regexp.MustCompile(`^\.[0-9a-f]{8}\.` + TempExt + `$`)

// EnsureDirs creates all directories with 0o750 permissions.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WithExtension returns path with the extension of its last element replaced
// by ext, or ext appended when there is none. A leading dot does not start an
// extension: ".state" becomes ".state.flock", "a.tar.gz" becomes "a.tar.flock".
// An empty ext strips the extension.
func WithExtension(path, ext string) string {
	dir, base := filepath.Split(path)
	stem := base
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		stem = base[:i]
	}
	if ext == "" {
		return dir + stem
	}
	return dir + stem + "." + ext
}

// LockPath is the lock file guarding the backing file at path.
func LockPath(path string) string {
	return WithExtension(path, LockExt)
}

// TempPath returns a fresh staging path for path: the extension is replaced
// by eight random hex digits followed by ".tmp".
func TempPath(path string) string {
	return WithExtension(path, uuid.NewString()[:8]+"."+TempExt)
}

// IsTempOf reports whether name (a base name) is a staging file of path.
func IsTempOf(path, name string) bool {
	stem := WithExtension(filepath.Base(path), "")
	rest, ok := strings.CutPrefix(name, stem)
	return ok && tempSuffix.MatchString(rest)
}

// RemoveMatching scans dir and removes entries where match returns true.
// Returns the removed paths and a slice of errors for entries that could not be removed.
func RemoveMatching(ctx context.Context, dir string, match func(os.DirEntry) bool) ([]string, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("read %s: %w", dir, err)}
	}

	var (
		removed []string
		errs    []error
	)
	for _, e := range entries {
		if !match(e) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed = append(removed, path)
		log.WithFunc("utils.RemoveMatching").Infof(ctx, "GC removed: %s", path)
	}
	return removed, errs
}
