package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/projecteru2/atomblob/blob"
	"github.com/projecteru2/atomblob/codec"
	"github.com/projecteru2/atomblob/config"
	"github.com/projecteru2/atomblob/progress"
	"github.com/projecteru2/atomblob/types"
	"github.com/projecteru2/atomblob/utils"
)

// BaseHandler provides shared config and tracker access for all command handlers.
type BaseHandler struct {
	ConfProvider    func() *config.Config
	TrackerProvider func() progress.Tracker
}

// Init returns the command context and validated config in one call.
// The context carries the configured lock timeout; cancel must be called.
func (h BaseHandler) Init(cmd *cobra.Command) (context.Context, context.CancelFunc, *config.Config, error) {
	conf, err := h.Conf()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := WithLockTimeout(CommandContext(cmd), conf)
	return ctx, cancel, conf, nil
}

// Conf validates and returns the config. All handlers call this first.
func (h BaseHandler) Conf() (*config.Config, error) {
	if h.ConfProvider == nil {
		return nil, fmt.Errorf("config provider is nil")
	}
	conf := h.ConfProvider()
	if conf == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	return conf, nil
}

// Tracker returns the configured tracker, or a no-op one.
func (h BaseHandler) Tracker() progress.Tracker {
	if h.TrackerProvider == nil {
		return progress.Nop
	}
	if t := h.TrackerProvider(); t != nil {
		return t
	}
	return progress.Nop
}

// OpenDocument opens the document blob at path with the configured codec,
// file options and tracker, creating its directory if needed.
func (h BaseHandler) OpenDocument(ctx context.Context, conf *config.Config, path string) (*blob.Handle[types.Document], error) {
	c, err := codec.Lookup(conf.Codec)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDirs(filepath.Dir(path)); err != nil {
		return nil, err
	}
	handle, err := blob.Open[types.Document](ctx, path,
		blob.WithCodec(c),
		blob.WithStoreOptions(conf.StoreOptions()),
		blob.WithTracker(h.Tracker()),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return handle, nil
}

// CommandContext returns command context, falling back to Background.
func CommandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// WithLockTimeout bounds ctx by conf.LockTimeout when it is set.
func WithLockTimeout(ctx context.Context, conf *config.Config) (context.Context, context.CancelFunc) {
	if conf.LockTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, conf.LockTimeout)
}

// ParseAssignments parses KEY=VALUE arguments. Later keys win.
func ParseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, want KEY=VALUE", arg)
		}
		out[key] = value
	}
	return out, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec
}

func FormatSize(bytes int64) string {
	return units.HumanSize(float64(bytes))
}
