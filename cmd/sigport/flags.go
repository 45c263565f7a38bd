package main

import (
	"flag"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/c360/sigport/config"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Samples         int64
	SampleRate      float64
	NATSURL         string
	MetricsPort     int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
	Describe        bool
	PrintConfig     bool
}

// parseFlags parses args. Flags left at their zero value do not override
// the configuration file.
func parseFlags(args []string, getenv func(string) string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config", getenv("SIGPORT_CONFIG"),
		"Path to YAML or JSON configuration file (env: SIGPORT_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c", getenv("SIGPORT_CONFIG"),
		"Path to YAML or JSON configuration file (env: SIGPORT_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level", getenv("SIGPORT_LOG_LEVEL"),
		"Log level: debug, info, warn, error (env: SIGPORT_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", getenv("SIGPORT_LOG_FORMAT"),
		"Log format: json, text (env: SIGPORT_LOG_FORMAT)")

	fs.Int64Var(&cfg.Samples, "samples", -1,
		"Samples to generate, 0 runs until interrupted")
	fs.Float64Var(&cfg.SampleRate, "rate", -1,
		"Source sample rate in samples/s, 0 runs unpaced")
	fs.StringVar(&cfg.NATSURL, "nats", "",
		"Route samples through the NATS server at this URL")

	fs.IntVar(&cfg.MetricsPort, "metrics-port", getEnvInt(getenv, "SIGPORT_METRICS_PORT", 0),
		"Serve /metrics and /health on this port (env: SIGPORT_METRICS_PORT)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration(getenv, "SIGPORT_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: SIGPORT_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")
	fs.BoolVar(&cfg.Describe, "describe", false, "Dump port storage after the run")
	fs.BoolVar(&cfg.PrintConfig, "print-config", false, "Print the resolved configuration and exit")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			cfg.ShowHelp = true
			return cfg, nil
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.LogLevel != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	return nil
}

// applyOverrides copies the flags that were set onto cfg.
func (c *CLIConfig) applyOverrides(cfg *config.Config) {
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	if c.Samples >= 0 {
		cfg.Source.Samples = c.Samples
	}
	if c.SampleRate >= 0 {
		cfg.Source.SampleRate = c.SampleRate
	}
	if c.NATSURL != "" {
		cfg.NATS.Enabled = true
		cfg.NATS.URLs = []string{c.NATSURL}
	}
	if c.MetricsPort > 0 {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port = c.MetricsPort
	}
}

func printDetailedHelp(w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - blocking sample ports with a frequency modem test pipeline

Usage: %s [options]

Options:
  -c, -config path        YAML or JSON configuration file (env: SIGPORT_CONFIG)
  -log-level level        debug, info, warn, error (env: SIGPORT_LOG_LEVEL)
  -log-format format      json, text (env: SIGPORT_LOG_FORMAT)
  -samples n              samples to generate, 0 runs until interrupted
  -rate r                 source sample rate in samples/s, 0 runs unpaced
  -nats url               route samples through a NATS server
  -metrics-port port      serve /metrics and /health (env: SIGPORT_METRICS_PORT)
  -shutdown-timeout d     graceful shutdown timeout (env: SIGPORT_SHUTDOWN_TIMEOUT)
  -describe               dump port storage after the run
  -print-config           print the resolved configuration and exit
  -validate               validate configuration and exit
  -v, -version            show version information
  -h, -help               show this help

Examples:
  # One second of samples at 48 kHz with text logs
  %s -samples 48000 -rate 48000 -log-format text

  # Through a local NATS server, with metrics
  %s -nats nats://localhost:4222 -metrics-port 9090

  # Validate configuration only
  %s -config sigport.yaml -validate

Version: %s
Build: %s
`, appName, appName, appName, appName, appName, Version, BuildTime)
}

// Environment variable helper functions
func getEnvInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

