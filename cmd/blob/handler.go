package blob

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	cmdcore "github.com/projecteru2/atomblob/cmd/core"
	"github.com/projecteru2/atomblob/codec"
	"github.com/projecteru2/atomblob/gc"
	"github.com/projecteru2/atomblob/lock"
	"github.com/projecteru2/atomblob/lock/flock"
	"github.com/projecteru2/atomblob/storage"
	"github.com/projecteru2/atomblob/types"
	"github.com/projecteru2/atomblob/utils"
)

type Handler struct {
	cmdcore.BaseHandler
	// Out receives command output; nil means stdout.
	Out io.Writer
}

func (h Handler) out() io.Writer {
	if h.Out != nil {
		return h.Out
	}
	return os.Stdout
}

func (h Handler) Show(cmd *cobra.Command, args []string) error {
	ctx, cancel, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	handle, err := h.OpenDocument(ctx, conf, args[0])
	if err != nil {
		return err
	}

	var doc types.Document
	if err := handle.With(ctx, func(d *types.Document) error {
		doc = *d
		return nil
	}); err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	if f, ok := h.out().(*os.File); ok && cmdcore.IsTerminal(f) {
		return printDocument(f, &doc)
	}
	c, err := codec.Lookup(conf.Codec)
	if err != nil {
		return err
	}
	return c.Encode(h.out(), &doc)
}

func (h Handler) Set(cmd *cobra.Command, args []string) error {
	fields, err := cmdcore.ParseAssignments(args[1:])
	if err != nil {
		return err
	}
	return h.update(cmd, args[0], func(d *types.Document) error {
		for k, v := range fields {
			d.Fields[k] = v
		}
		return nil
	})
}

func (h Handler) Unset(cmd *cobra.Command, args []string) error {
	return h.update(cmd, args[0], func(d *types.Document) error {
		for _, k := range args[1:] {
			delete(d.Fields, k)
			delete(d.Counters, k)
		}
		return nil
	})
}

func (h Handler) update(cmd *cobra.Command, path string, fn func(*types.Document) error) error {
	ctx, cancel, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	handle, err := h.OpenDocument(ctx, conf, path)
	if err != nil {
		return err
	}

	var revision int64
	if err := handle.Update(ctx, func(d *types.Document) error {
		if err := fn(d); err != nil {
			return err
		}
		d.Touch(time.Now())
		revision = d.Revision
		return nil
	}); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	log.WithFunc("cmd.update").Infof(ctx, "%s updated to revision %d", path, revision)
	return nil
}

func (h Handler) Incr(cmd *cobra.Command, args []string) error {
	ctx, cancel, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	path, name := args[0], args[1]
	by, _ := cmd.Flags().GetInt64("by")
	workers, _ := cmd.Flags().GetInt("workers")
	times, _ := cmd.Flags().GetInt("times")
	if workers < 1 || times < 1 {
		return fmt.Errorf("--workers and --times must be positive")
	}

	handle, err := h.OpenDocument(ctx, conf, path)
	if err != nil {
		return err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		clone := handle.Clone()
		g.Go(func() error {
			for range times {
				if err := clone.Update(gctx, func(d *types.Document) error {
					d.Counters[name] += by
					d.Touch(time.Now())
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("increment %s in %s: %w", name, path, err)
	}

	var value int64
	if err := handle.With(ctx, func(d *types.Document) error {
		value = d.Counters[name]
		return nil
	}); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	log.WithFunc("cmd.incr").Debugf(ctx, "%d increments of %s in %s", workers*times, name, time.Since(start))
	_, err = fmt.Fprintf(h.out(), "%s = %d\n", name, value)
	return err
}

func (h Handler) Stat(cmd *cobra.Command, args []string) error {
	ctx, cancel, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	path := args[0]
	c, err := codec.Lookup(conf.Codec)
	if err != nil {
		return err
	}

	lockPath := utils.LockPath(path)
	var (
		info  os.FileInfo
		doc   types.Document
		gen   int64
		found bool
	)
	if err := lock.WithShared(ctx, flock.New(lockPath), func(lock.State) error {
		var err error
		if gen, err = flock.ReadGeneration(lockPath); err != nil {
			return err
		}
		if doc, found, err = storage.Load[types.Document](path, c); err != nil || !found {
			return err
		}
		info, err = os.Stat(path)
		return err
	}); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	w := tabwriter.NewWriter(h.out(), 0, 0, 2, ' ', 0) //nolint:mnd
	fmt.Fprintf(w, "PATH\t%s\n", path)
	fmt.Fprintf(w, "LOCK\t%s\n", lockPath)
	fmt.Fprintf(w, "GENERATION\t%d\n", gen)
	if !found {
		fmt.Fprintf(w, "STATE\tmissing (default value)\n")
		return w.Flush()
	}
	fmt.Fprintf(w, "SIZE\t%s\n", cmdcore.FormatSize(info.Size()))
	fmt.Fprintf(w, "MODIFIED\t%s ago\n", units.HumanDuration(time.Since(info.ModTime())))
	fmt.Fprintf(w, "REVISION\t%d\n", doc.Revision)
	fmt.Fprintf(w, "COUNTERS\t%d\n", len(doc.Counters))
	fmt.Fprintf(w, "FIELDS\t%d\n", len(doc.Fields))
	return w.Flush()
}

func (h Handler) GC(cmd *cobra.Command, args []string) error {
	ctx, cancel, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	o := gc.New(flock.Open)
	for _, path := range args {
		o.Register(gc.Target{Path: path, MaxAge: conf.StaleTempAge})
	}
	removed, err := o.Run(ctx)
	for _, p := range removed {
		fmt.Fprintf(h.out(), "Removed: %s\n", p) //nolint:errcheck
	}
	if err != nil {
		return err
	}
	log.WithFunc("cmd.gc").Infof(ctx, "GC completed, %d staging files removed", len(removed))
	return nil
}

func printDocument(w io.Writer, d *types.Document) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd
	fmt.Fprintln(tw, "KIND\tNAME\tVALUE")
	for _, k := range d.CounterNames() {
		fmt.Fprintf(tw, "counter\t%s\t%d\n", k, d.Counters[k])
	}
	for _, k := range d.FieldNames() {
		fmt.Fprintf(tw, "field\t%s\t%s\n", k, d.Fields[k])
	}
	if !d.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "\nrevision %d, updated %s\n", d.Revision, d.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

var _ Actions = Handler{}
