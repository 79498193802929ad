package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/projecteru2/core/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdblob "github.com/projecteru2/atomblob/cmd/blob"
	cmdcore "github.com/projecteru2/atomblob/cmd/core"
	cmdothers "github.com/projecteru2/atomblob/cmd/others"
	"github.com/projecteru2/atomblob/config"
	"github.com/projecteru2/atomblob/metrics"
	"github.com/projecteru2/atomblob/progress"
	blobprogress "github.com/projecteru2/atomblob/progress/blob"
)

var (
	cfgFile     string
	metricsFile string
	conf        *config.Config
	registry    *prometheus.Registry
	tracker     progress.Tracker
)

var rootCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "atomblob",
		Short:         "atomblob - crash-consistent single-file object cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(commandContext(cmd))
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return writeMetrics()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the command")
	cmd.PersistentFlags().String("codec", "", "blob encoding (json, yaml, toml, cbor)")
	cmd.PersistentFlags().Duration("lock-timeout", 0, "give up waiting for the file lock after this long (0 waits forever)")
	cmd.PersistentFlags().Bool("sync", true, "fsync staging files and directories on commit")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("codec", cmd.PersistentFlags().Lookup("codec"))
	_ = viper.BindPFlag("lock_timeout", cmd.PersistentFlags().Lookup("lock-timeout"))
	_ = viper.BindPFlag("sync", cmd.PersistentFlags().Lookup("sync"))
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix("ATOMBLOB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	base := cmdcore.BaseHandler{
		ConfProvider:    func() *config.Config { return conf },
		TrackerProvider: func() progress.Tracker { return tracker },
	}

	for _, c := range cmdblob.Commands(cmdblob.Handler{BaseHandler: base}) {
		cmd.AddCommand(c)
	}
	for _, c := range cmdothers.Commands(cmdothers.Handler{BaseHandler: base}) {
		cmd.AddCommand(c)
	}

	return cmd
}()

func initConfig(ctx context.Context) error {
	conf = config.DefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := viper.Unmarshal(conf); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	// Empty flag values must not clobber defaults.
	if conf.Codec == "" {
		conf.Codec = config.DefaultConfig().Codec
	}
	if conf.Log.Level == "" {
		conf.Log.Level = config.DefaultConfig().Log.Level
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	registry = prometheus.NewRegistry()
	tracker = progress.Multi(
		metrics.New(conf.MetricsNamespace, registry),
		progress.NewTracker(func(e blobprogress.Event) {
			if e.Err != nil {
				log.WithFunc("cmd.tracker").Warnf(ctx, "%s %s failed: %v", e.Phase, e.Path, e.Err)
				return
			}
			log.WithFunc("cmd.tracker").Debugf(ctx, "%s %s took %s", e.Phase, e.Path, e.Duration)
		}),
	)

	return log.SetupLog(ctx, &conf.Log, "")
}

func writeMetrics() error {
	if metricsFile == "" || registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func newCommandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func commandContext(cmd *cobra.Command) context.Context {
	return cmdcore.CommandContext(cmd)
}

// Execute is the main entry point called from main.go.
func Execute() error {
	ctx, cancel := newCommandContext()
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}
