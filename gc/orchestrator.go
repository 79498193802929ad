// Package gc removes staging files left behind by writers that died between
// creating and renaming them.
package gc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/atomblob/lock"
	"github.com/projecteru2/atomblob/storage"
	"github.com/projecteru2/atomblob/utils"
)

// Target is one backing file whose staging files are collected.
type Target struct {
	Path string
	// MaxAge spares staging files younger than this.
	MaxAge time.Duration
}

// Orchestrator runs GC across all registered targets.
type Orchestrator struct {
	opener  lock.Opener
	targets []Target
}

// New creates an empty Orchestrator that locks targets through opener.
func New(opener lock.Opener) *Orchestrator { return &Orchestrator{opener: opener} }

// Register adds a backing file to the GC cycle.
func (o *Orchestrator) Register(t Target) {
	o.targets = append(o.targets, t)
}

// Run executes one GC cycle. Each target is swept under its own exclusive
// lock, so no live writer is staging while its directory is scanned. A
// failing target does not stop the others; all failures are reported
// together. Returns the removed paths.
func (o *Orchestrator) Run(ctx context.Context) ([]string, error) {
	logger := log.WithFunc("gc.Run")

	var (
		removed []string
		errs    []string
	)
	for _, t := range o.targets {
		err := lock.WithExclusive(ctx, o.opener(utils.LockPath(t.Path)), func(lock.State) error {
			paths, rmErrs := storage.CleanStaleTemps(ctx, t.Path, t.MaxAge)
			removed = append(removed, paths...)
			for _, e := range rmErrs {
				errs = append(errs, fmt.Sprintf("%s: %v", t.Path, e))
			}
			return nil
		})
		if err != nil {
			logger.Warnf(ctx, "skip %s: %v", t.Path, err)
			errs = append(errs, fmt.Sprintf("%s: %v", t.Path, err))
		}
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("gc errors: %s", strings.Join(errs, "; "))
	}
	return removed, nil
}
