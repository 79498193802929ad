package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atomblob.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	conf, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)

	conf, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "json", conf.Codec)
	assert.Equal(t, os.FileMode(0o644), conf.FileMode)
	assert.True(t, conf.Sync)
	assert.Equal(t, time.Hour, conf.StaleTempAge)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `{"codec": "YAML", "file_mode": 384, "sync": false, "stale_temp_age": 60000000000, "log": {"level": "debug"}}`)
	conf, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "YAML", conf.Codec)
	assert.Equal(t, os.FileMode(0o600), conf.FileMode)
	assert.False(t, conf.Sync)
	assert.Equal(t, time.Minute, conf.StaleTempAge)
	assert.Equal(t, "debug", conf.Log.Level)
	assert.Equal(t, os.FileMode(0o600), conf.StoreOptions().Perm)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"codec": `))
	assert.ErrorContains(t, err, "parse config")

	_, err = LoadConfig(writeConfig(t, `{"codec": "xml"}`))
	assert.ErrorContains(t, err, `unknown codec "xml"`)

	_, err = LoadConfig(writeConfig(t, `{"lock_timeout": -1}`))
	assert.ErrorContains(t, err, "lock_timeout")
}

func TestValidateFillsZeroValues(t *testing.T) {
	conf := &Config{}
	require.NoError(t, conf.Validate())
	assert.Equal(t, os.FileMode(0o644), conf.FileMode)
	assert.Equal(t, time.Hour, conf.StaleTempAge)
}
