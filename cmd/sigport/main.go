// Package main implements the sigport command. It runs a test tone through
// a frequency modulator, blocking sample ports (optionally across NATS) and
// a demodulator, and verifies the recovered signal.
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
	"time"

	"github.com/c360/sigport/config"
	"github.com/c360/sigport/health"
	"github.com/c360/sigport/metric"
	"github.com/c360/sigport/pipeline"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sigport"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	cliCfg, err := parseFlags(args, getenv)
	if err != nil {
		printDetailedHelp(stderr)
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp(stdout)
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(stderr, cfg.Log)
	slog.SetDefault(logger)

	if cliCfg.PrintConfig {
		_, _ = fmt.Fprint(stdout, cfg.String())
		return nil
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("Starting sigport",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return runPipeline(ctx, cfg, cliCfg, logger, stdout)
}

// loadConfig layers the file (if any), environment and flags over the
// defaults, then validates the result.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(false)
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cliCfg.applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runPipeline(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger, stdout io.Writer) error {
	monitor := health.NewMonitor(appName)
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMonitor(monitor),
	}

	if cfg.Metrics.Enabled {
		registry := metric.NewMetricsRegistry()
		opts = append(opts, pipeline.WithMetrics(registry))

		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		server.Handle("/health", monitor)
		serveErrs, err := server.Start()
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("Metrics server listening", "address", server.Address())

		go func() {
			if err := <-serveErrs; err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				logger.Warn("Metrics server shutdown failed", "error", err)
			}
		}()
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	// A second signal after the source stopped, or a drain that outlives the
	// shutdown timeout, abandons the run.
	runCtx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	stopSource := context.AfterFunc(ctx, func() {
		logger.Info("Received shutdown signal, draining")
		time.AfterFunc(cliCfg.ShutdownTimeout, func() {
			cancel(fmt.Errorf("shutdown timeout %v exceeded", cliCfg.ShutdownTimeout))
		})
	})
	defer stopSource()

	report, err := runUntil(ctx, runCtx, p)

	if cliCfg.Describe {
		if derr := p.Describe(stdout); derr != nil {
			logger.Warn("Describe failed", "error", derr)
		}
	}
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if report.Interrupted {
		logger.Info("sigport stopped early", "report", report)
	} else {
		logger.Info("sigport finished", "report", report)
	}
	return nil
}

// runUntil runs p with ctx as the stop signal, giving up when abort is
// cancelled.
func runUntil(ctx, abort context.Context, p *pipeline.Pipeline) (*pipeline.Report, error) {
	type result struct {
		report *pipeline.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := p.Run(ctx)
		done <- result{report, err}
	}()

	select {
	case r := <-done:
		return r.report, r.err
	case <-abort.Done():
		return nil, context.Cause(abort)
	}
}
