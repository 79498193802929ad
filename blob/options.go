package blob

import (
	"os"

	"github.com/projecteru2/atomblob/codec"
	"github.com/projecteru2/atomblob/lock"
	"github.com/projecteru2/atomblob/lock/flock"
	"github.com/projecteru2/atomblob/progress"
	"github.com/projecteru2/atomblob/storage"
)

// Option configures a Handle at Open time. Options are shared by all clones.
type Option func(*options)

type options struct {
	codec   codec.Codec
	opener  lock.Opener
	tracker progress.Tracker
	save    storage.Options
}

func defaultOptions() *options {
	return &options{
		codec:   codec.Default(),
		opener:  flock.Open,
		tracker: progress.Nop,
		save:    storage.DefaultOptions(),
	}
}

// WithCodec selects the on-disk encoding. Every process sharing the file must
// use the same codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLockOpener replaces the flock-based lock collaborator.
func WithLockOpener(opener lock.Opener) Option {
	return func(o *options) {
		if opener != nil {
			o.opener = opener
		}
	}
}

// WithTracker receives blob progress events (see progress/blob).
func WithTracker(t progress.Tracker) Option {
	return func(o *options) {
		if t != nil {
			o.tracker = t
		}
	}
}

// WithStoreOptions replaces the file mode and sync settings at once.
func WithStoreOptions(opts storage.Options) Option {
	return func(o *options) { o.save = opts }
}

// WithFileMode sets the permissions of the backing file written on commit.
func WithFileMode(perm os.FileMode) Option {
	return func(o *options) { o.save.Perm = perm }
}

// WithSync toggles fsync of the staging file and parent directory on commit.
func WithSync(sync bool) Option {
	return func(o *options) { o.save.Sync = sync }
}
