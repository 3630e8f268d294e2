package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/lazyval/pkg/telemetry"
)

var (
	// Global flags
	verbose      bool
	logLevel     string
	metricsAddr  string
	traceOutput  string
	otlpEndpoint string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	var tel *telemetry.Telemetry

	rootCmd := &cobra.Command{
		Use:   "lazyval",
		Short: "lazyval - print lazily evaluated configuration values",
		Long: `lazyval loads Starlark and CUE configuration sources as lazy value graphs
and prints them in a compact, bounded notation.

Features:
  - Deferred values print as «thunk» unless forced
  - Evaluation errors print inline instead of aborting
  - Shared and cyclic values print as «repeated»
  - Depth, attribute, list and string bounds with elision markers
  - Derivations registered in a SQLite store
  - Re-render on change with --watch`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			tel, err = newTelemetry(version)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			if err := tel.StartMetricsServer(); err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}
			cmd.SetContext(tel.WithContext(cmd.Context()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if tel == nil {
				return nil
			}
			return tel.Shutdown(context.WithoutCancel(cmd.Context()))
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVar(&traceOutput, "trace", "none", "span exporter (none, stdout, otlp)")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP collector endpoint")

	// Add subcommands
	rootCmd.AddCommand(newPrintCommand())
	rootCmd.AddCommand(newStoreCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// newTelemetry builds telemetry from the global flags. Logs go to stderr at
// warn level unless asked otherwise.
func newTelemetry(version string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Logging.Level = "warn"
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	// the global level also gates the command loggers
	if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg.Tracing.Exporter = traceOutput
	cfg.Tracing.Enabled = traceOutput != "none"
	cfg.Tracing.Endpoint = otlpEndpoint
	cfg.Metrics.ListenAddress = metricsAddr

	return telemetry.NewTelemetry(cfg)
}

// telemetryFrom returns the telemetry installed by the root command.
func telemetryFrom(ctx context.Context) *telemetry.Telemetry {
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		return tel
	}
	return telemetry.NewNopTelemetry()
}
