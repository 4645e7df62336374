// Package main implements the linesink command: it reads events from one
// input and appends them, encoded and postprocessed, to a file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360/linesink/config"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "linesink"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Append encoded events to a file, one record per line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newVersionCommand())
	return root
}

func newRunCommand() *cobra.Command {
	cli := &CLIConfig{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline until the input ends or SIGINT/SIGTERM arrives",
		Example: `  linesink run --config /etc/linesink/linesink.yaml
  linesink run -c linesink.yaml --log-level=debug --log-format=text
  LINESINK_SINK_FILE=/tmp/out.ndjson linesink run --validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cli, cmd.ErrOrStderr())
		},
	}
	bindFlags(cmd.Flags(), cli)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build %s)\n", appName, Version, BuildTime)
		},
	}
}

func run(ctx context.Context, cli *CLIConfig, logOut io.Writer) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format, logOut)
	slog.SetDefault(logger)

	logger.Info("Starting linesink",
		"build_time", BuildTime,
		"config_path", cli.ConfigPath,
		"sink", cfg.Sink.Type,
		"input", cfg.Input.Type)

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	if cli.Validate {
		p.discard()
		logger.Info("Configuration is valid")
		return nil
	}

	return p.run(ctx, cli.ShutdownTimeout)
}

// loadConfig loads the file, applies flag overrides, then validates
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(false)
	cfg, err := loader.LoadFile(cli.ConfigPath)
	if err != nil {
		return nil, err
	}

	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
