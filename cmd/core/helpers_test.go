package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/atomblob/config"
	"github.com/projecteru2/atomblob/types"
)

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"a=1", "b=", "c=x=y", "a=2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2", "b": "", "c": "x=y"}, got)

	for _, bad := range []string{"noequals", "=value"} {
		_, err := ParseAssignments([]string{bad})
		assert.ErrorContains(t, err, "invalid assignment", bad)
	}
}

func TestConfNotInitialized(t *testing.T) {
	_, err := BaseHandler{}.Conf()
	assert.ErrorContains(t, err, "config provider is nil")

	_, err = BaseHandler{ConfProvider: func() *config.Config { return nil }}.Conf()
	assert.ErrorContains(t, err, "config not initialized")
}

func TestWithLockTimeout(t *testing.T) {
	conf := config.DefaultConfig()
	ctx, cancel := WithLockTimeout(context.Background(), conf)
	_, ok := ctx.Deadline()
	assert.False(t, ok)
	cancel()

	conf.LockTimeout = time.Minute
	ctx, cancel = WithLockTimeout(context.Background(), conf)
	defer cancel()
	_, ok = ctx.Deadline()
	assert.True(t, ok)
}

func TestOpenDocument(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Codec = "toml"
	conf.FileMode = 0o600
	conf.Sync = false
	h := BaseHandler{ConfProvider: func() *config.Config { return conf }}

	ctx, cancel, got, err := h.Init(&cobra.Command{})
	require.NoError(t, err)
	defer cancel()
	assert.Same(t, conf, got)

	path := filepath.Join(t.TempDir(), "nested", "doc.toml")
	handle, err := h.OpenDocument(ctx, conf, path)
	require.NoError(t, err)
	require.NoError(t, handle.With(ctx, func(d *types.Document) error {
		assert.NotNil(t, d.Counters)
		assert.NotNil(t, d.Fields)
		return nil
	}))

	require.NoError(t, handle.Update(ctx, func(d *types.Document) error {
		d.Fields["k"] = "v"
		return nil
	}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	conf.Codec = "xml"
	_, err = h.OpenDocument(ctx, conf, path)
	assert.Error(t, err)
}
