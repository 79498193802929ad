package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	coretypes "github.com/projecteru2/core/types"

	"github.com/projecteru2/atomblob/codec"
	"github.com/projecteru2/atomblob/storage"
	"github.com/projecteru2/atomblob/utils"
)

// Config holds global atomblob configuration.
type Config struct {
	// Codec names the encoding of blob files: json, yaml, toml or cbor.
	Codec string `json:"codec" mapstructure:"codec"`
	// FileMode is the permission of newly written blob files.
	FileMode os.FileMode `json:"file_mode" mapstructure:"file_mode"`
	// Sync fsyncs the staging file and its directory on every commit.
	Sync bool `json:"sync" mapstructure:"sync"`
	// StaleTempAge is how old a staging file must be before gc removes it.
	StaleTempAge time.Duration `json:"stale_temp_age" mapstructure:"stale_temp_age"`
	// LockTimeout bounds lock acquisition in CLI commands. Zero waits forever.
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout"`
	// MetricsNamespace prefixes exported Prometheus metric names.
	MetricsNamespace string `json:"metrics_namespace" mapstructure:"metrics_namespace"`
	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	opts := storage.DefaultOptions()
	return &Config{
		Codec:            codec.Default().Name(),
		FileMode:         opts.Perm,
		Sync:             opts.Sync,
		StaleTempAge:     utils.StaleTempAge,
		MetricsNamespace: "atomblob",
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from a JSON file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	if path == "" {
		return conf, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path from CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return conf, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate fills zero values with defaults and rejects unknown codecs.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.FileMode == 0 {
		c.FileMode = def.FileMode
	}
	if c.StaleTempAge <= 0 {
		c.StaleTempAge = def.StaleTempAge
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock_timeout must not be negative: %s", c.LockTimeout)
	}
	if _, err := codec.Lookup(c.Codec); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// StoreOptions returns the storage options described by the config.
func (c *Config) StoreOptions() storage.Options {
	return storage.Options{Perm: c.FileMode, Sync: c.Sync}
}
