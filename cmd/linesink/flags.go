package main

import (
	"os"
	"time"

	"github.com/spf13/pflag"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string // overrides log.level when set
	LogFormat       string // overrides log.format when set
	ShutdownTimeout time.Duration
	Validate        bool
}

func bindFlags(flags *pflag.FlagSet, cfg *CLIConfig) {
	flags.StringVarP(&cfg.ConfigPath, "config", "c",
		getEnv("LINESINK_CONFIG", "linesink.yaml"),
		"Path to configuration file (env: LINESINK_CONFIG)")

	flags.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (env: LINESINK_LOG_LEVEL)")

	flags.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text (env: LINESINK_LOG_FORMAT)")

	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("LINESINK_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout for the metrics server (env: LINESINK_SHUTDOWN_TIMEOUT)")

	flags.BoolVar(&cfg.Validate, "validate", false, "Validate configuration, build the pipeline and exit")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
