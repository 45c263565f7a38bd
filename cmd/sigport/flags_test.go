package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sigport/config"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestParseFlags_Defaults(t *testing.T) {
	cfg, err := parseFlags(nil, envMap(nil))
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigPath)
	assert.Equal(t, int64(-1), cfg.Samples)
	assert.Equal(t, -1.0, cfg.SampleRate)
	assert.Zero(t, cfg.MetricsPort)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.ShowVersion)
	assert.False(t, cfg.Describe)
}

func TestParseFlags_Values(t *testing.T) {
	cfg, err := parseFlags([]string{
		"-c", "run.yaml",
		"-log-level", "debug",
		"-samples", "4800",
		"-rate", "48000",
		"-nats", "nats://example:4222",
		"-metrics-port", "9191",
		"-shutdown-timeout", "3s",
		"-describe",
	}, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "run.yaml", cfg.ConfigPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(4800), cfg.Samples)
	assert.Equal(t, 48000.0, cfg.SampleRate)
	assert.Equal(t, "nats://example:4222", cfg.NATSURL)
	assert.Equal(t, 9191, cfg.MetricsPort)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.Describe)
}

func TestParseFlags_Environment(t *testing.T) {
	env := envMap(map[string]string{
		"SIGPORT_CONFIG":           "env.yaml",
		"SIGPORT_LOG_FORMAT":       "text",
		"SIGPORT_METRICS_PORT":     "9300",
		"SIGPORT_SHUTDOWN_TIMEOUT": "45s",
	})

	cfg, err := parseFlags(nil, env)
	require.NoError(t, err)
	assert.Equal(t, "env.yaml", cfg.ConfigPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 9300, cfg.MetricsPort)
	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout)

	// Flags win over the environment.
	cfg, err = parseFlags([]string{"-config", "flag.yaml"}, env)
	require.NoError(t, err)
	assert.Equal(t, "flag.yaml", cfg.ConfigPath)
}

func TestParseFlags_MalformedEnvironmentFallsBack(t *testing.T) {
	cfg, err := parseFlags(nil, envMap(map[string]string{
		"SIGPORT_METRICS_PORT":     "lots",
		"SIGPORT_SHUTDOWN_TIMEOUT": "soon",
	}))
	require.NoError(t, err)
	assert.Zero(t, cfg.MetricsPort)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestParseFlags_Errors(t *testing.T) {
	_, err := parseFlags([]string{"-no-such-flag"}, envMap(nil))
	assert.Error(t, err)

	_, err = parseFlags([]string{"-samples", "many"}, envMap(nil))
	assert.Error(t, err)

	_, err = parseFlags([]string{"extra"}, envMap(nil))
	assert.ErrorContains(t, err, "unexpected arguments")
}

func TestValidateFlags(t *testing.T) {
	valid := func() *CLIConfig {
		return &CLIConfig{Samples: -1, SampleRate: -1, ShutdownTimeout: time.Second}
	}

	tests := []struct {
		name    string
		modify  func(*CLIConfig)
		wantErr string
	}{
		{name: "defaults", modify: func(*CLIConfig) {}},
		{name: "bad level", modify: func(c *CLIConfig) { c.LogLevel = "loud" }, wantErr: "log level"},
		{name: "bad format", modify: func(c *CLIConfig) { c.LogFormat = "xml" }, wantErr: "log format"},
		{name: "bad port", modify: func(c *CLIConfig) { c.MetricsPort = 70000 }, wantErr: "metrics port"},
		{name: "bad timeout", modify: func(c *CLIConfig) { c.ShutdownTimeout = 0 }, wantErr: "shutdown timeout"},
		{
			name: "version skips checks",
			modify: func(c *CLIConfig) {
				c.ShowVersion = true
				c.LogLevel = "loud"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := validateFlags(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Run("unset flags keep configuration", func(t *testing.T) {
		cfg := config.Default()
		want := config.Default()
		(&CLIConfig{Samples: -1, SampleRate: -1}).applyOverrides(cfg)
		assert.Equal(t, want, cfg)
	})

	t.Run("set flags replace configuration", func(t *testing.T) {
		cfg := config.Default()
		cli := &CLIConfig{
			LogLevel:    "warn",
			LogFormat:   "text",
			Samples:     0,
			SampleRate:  8000,
			NATSURL:     "nats://bus:4222",
			MetricsPort: 9500,
		}
		cli.applyOverrides(cfg)

		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, "text", cfg.Log.Format)
		assert.Zero(t, cfg.Source.Samples)
		assert.Equal(t, 8000.0, cfg.Source.SampleRate)
		assert.True(t, cfg.NATS.Enabled)
		assert.Equal(t, []string{"nats://bus:4222"}, cfg.NATS.URLs)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9500, cfg.Metrics.Port)
	})
}

func TestPrintDetailedHelp(t *testing.T) {
	var buf bytes.Buffer
	printDetailedHelp(&buf)
	assert.Contains(t, buf.String(), "Usage: sigport")
	assert.Contains(t, buf.String(), "-shutdown-timeout")
	assert.Contains(t, buf.String(), Version)
}
