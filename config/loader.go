package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	errs "github.com/c360/sigport/errors"
)

const (
	maxConfigSize = 1 << 20 // 1MB max config file size
	maxEnvVarLen  = 10000
	maxPathLen    = 4096
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIGPORT"

// Loader handles configuration loading with layers and overrides.
// Layers are applied in order on top of Default(), so later files only need
// to name the fields they change.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a loader with validation enabled.
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  EnvPrefix,
		getenv:     os.Getenv,
	}
}

// AddLayer adds a configuration file layer.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load applies defaults, every layer, then environment overrides, and
// validates the result if enabled.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		if err := l.applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// applyFile decodes one YAML or JSON file onto cfg. JSON is a subset of
// YAML so both go through the same decoder. Unknown keys are rejected and
// durations must be strings such as "2s".
func (l *Loader) applyFile(cfg *Config, path string) error {
	data, err := readConfigFile(path)
	if err != nil {
		return errs.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("read %s", path))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return errs.WrapInvalid(fmt.Errorf("%w: %v", errs.ErrInvalidConfig, err),
			"Loader", "Load", fmt.Sprintf("parse %s", path))
	}
	return nil
}

// applyEnvOverrides applies PREFIX_SECTION_FIELD environment variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":    &cfg.Log.Level,
		"LOG_FORMAT":   &cfg.Log.Format,
		"MODEM_DEMOD":  &cfg.Modem.Demod,
		"NATS_NAME":    &cfg.NATS.Name,
		"NATS_SUBJECT": &cfg.NATS.Subject,
		"NATS_USER":    &cfg.NATS.Username,
		"NATS_PASS":    &cfg.NATS.Password,
		"NATS_TOKEN":   &cfg.NATS.Token,
		"METRICS_PATH": &cfg.Metrics.Path,
	}
	ints := map[string]*int{
		"PORT_CAPACITY":   &cfg.Port.Capacity,
		"PORT_BLOCK_SIZE": &cfg.Port.BlockSize,
		"NATS_FRAME_SIZE": &cfg.NATS.FrameSize,
		"METRICS_PORT":    &cfg.Metrics.Port,
	}
	floats := map[string]*float64{
		"SOURCE_FREQUENCY":   &cfg.Source.Frequency,
		"SOURCE_AMPLITUDE":   &cfg.Source.Amplitude,
		"SOURCE_SAMPLE_RATE": &cfg.Source.SampleRate,
		"MODEM_MOD_INDEX":    &cfg.Modem.ModIndex,
		"MODEM_CARRIER_FREQ": &cfg.Modem.CarrierFreq,
	}
	bools := map[string]*bool{
		"NATS_ENABLED":    &cfg.NATS.Enabled,
		"METRICS_ENABLED": &cfg.Metrics.Enabled,
	}

	for key, dst := range strs {
		val, err := l.lookup(key)
		if err != nil {
			return err
		}
		if val != "" {
			*dst = val
		}
	}
	for key, dst := range ints {
		if err := l.parseEnv(key, func(v string) error {
			n, err := strconv.Atoi(v)
			*dst = n
			return err
		}); err != nil {
			return err
		}
	}
	for key, dst := range floats {
		if err := l.parseEnv(key, func(v string) error {
			f, err := strconv.ParseFloat(v, 64)
			*dst = f
			return err
		}); err != nil {
			return err
		}
	}
	for key, dst := range bools {
		if err := l.parseEnv(key, func(v string) error {
			b, err := strconv.ParseBool(v)
			*dst = b
			return err
		}); err != nil {
			return err
		}
	}

	if err := l.parseEnv("SOURCE_SAMPLES", func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		cfg.Source.Samples = n
		return err
	}); err != nil {
		return err
	}

	urls, err := l.lookup("NATS_URLS")
	if err != nil {
		return err
	}
	if urls != "" {
		cfg.NATS.URLs = nil
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.NATS.URLs = append(cfg.NATS.URLs, u)
			}
		}
	}
	return nil
}

func (l *Loader) envName(key string) string {
	return l.envPrefix + "_" + key
}

func (l *Loader) lookup(key string) (string, error) {
	name := l.envName(key)
	val := l.getenv(name)
	if err := validateEnvVar(name, val); err != nil {
		return "", errs.WrapInvalid(err, "Loader", "applyEnvOverrides", "environment override")
	}
	return val, nil
}

// parseEnv runs parse on the variable's value when it is set.
func (l *Loader) parseEnv(key string, parse func(string) error) error {
	val, err := l.lookup(key)
	if err != nil || val == "" {
		return err
	}
	if err := parse(val); err != nil {
		return errs.WrapInvalid(fmt.Errorf("%w: %s=%q: %v", errs.ErrInvalidConfig, l.envName(key), val, err),
			"Loader", "applyEnvOverrides", "parse environment override")
	}
	return nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errs.WrapFatal(err, "Config", "SaveToFile", "encode")
	}
	if err := enc.Close(); err != nil {
		return errs.WrapFatal(err, "Config", "SaveToFile", "encode")
	}
	if err := writeConfigFile(path, buf.Bytes()); err != nil {
		return errs.WrapInvalid(err, "Config", "SaveToFile", fmt.Sprintf("write %s", path))
	}
	return nil
}

func validateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return nil
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}
}

// readConfigFile reads a config file after path, type and size checks.
func readConfigFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}
	return os.ReadFile(path)
}

func writeConfigFile(path string, data []byte) error {
	if err := validateConfigPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config data too large: %d bytes > %d", len(data), maxConfigSize)
	}
	// Owner read/write only; the file may hold NATS credentials.
	return os.WriteFile(path, data, 0600)
}

func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}
