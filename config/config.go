package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	errs "github.com/c360/sigport/errors"
)

// Demodulator kinds
const (
	DemodDiscriminator = "discriminator" // phase difference, one sample delay
	DemodPLL           = "pll"           // phase-locked loop
)

// MaxFrameSamples bounds the samples carried by one NATS frame so a frame
// stays well under the default 1MB NATS payload limit.
const MaxFrameSamples = 1 << 16

// Config is the complete pipeline configuration.
type Config struct {
	Version string        `json:"version,omitempty" yaml:"version,omitempty"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Port    PortConfig    `json:"port" yaml:"port"`
	Source  SourceConfig  `json:"source" yaml:"source"`
	Modem   ModemConfig   `json:"modem" yaml:"modem"`
	NATS    NATSConfig    `json:"nats" yaml:"nats"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// PortConfig sizes the ports between stages.
type PortConfig struct {
	Capacity  int `json:"capacity" yaml:"capacity"`     // samples per port
	BlockSize int `json:"block_size" yaml:"block_size"` // samples per produce/consume call
}

// SourceConfig describes the test tone fed into the modulator.
type SourceConfig struct {
	Samples    int64   `json:"samples" yaml:"samples"`         // 0 runs until cancelled
	Frequency  float64 `json:"frequency" yaml:"frequency"`     // cycles per sample
	Amplitude  float64 `json:"amplitude" yaml:"amplitude"`     // peak value
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"` // samples/s, 0 = unpaced
}

// ModemConfig holds the frequency modem parameters.
type ModemConfig struct {
	ModIndex     float64 `json:"mod_index" yaml:"mod_index"`       // radians per sample per unit input
	CarrierFreq  float64 `json:"carrier_freq" yaml:"carrier_freq"` // radians per sample
	Demod        string  `json:"demod" yaml:"demod"`
	PLLBandwidth float64 `json:"pll_bandwidth,omitempty" yaml:"pll_bandwidth,omitempty"`
	Tolerance    float64 `json:"tolerance" yaml:"tolerance"` // max demodulation error accepted by the verifier, 0 disables the check
}

// NATSConfig defines the optional NATS hop between modulator and demodulator.
type NATSConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	URLs           []string      `json:"urls,omitempty" yaml:"urls,omitempty"`
	Name           string        `json:"name,omitempty" yaml:"name,omitempty"`
	Subject        string        `json:"subject" yaml:"subject"`
	FrameSize      int           `json:"frame_size" yaml:"frame_size"` // samples per frame
	MaxReconnects  int           `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait  time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	Username       string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string        `json:"password,omitempty" yaml:"password,omitempty"`
	Token          string        `json:"token,omitempty" yaml:"token,omitempty"`
	TLS            TLSConfig     `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// TLSConfig secures the NATS connection. The system CA pool is always
// trusted; CAFiles add to it. CertFile and KeyFile enable mutual TLS.
type TLSConfig struct {
	Enabled            bool     `json:"enabled" yaml:"enabled"`
	CAFiles            []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`
	CertFile           string   `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile            string   `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	MinVersion         string   `json:"min_version,omitempty" yaml:"min_version,omitempty"` // "1.2" (default) or "1.3"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Port: PortConfig{
			Capacity:  4096,
			BlockSize: 256,
		},
		Source: SourceConfig{
			Samples:   1 << 16,
			Frequency: 0.01,
			Amplitude: 0.8,
		},
		Modem: ModemConfig{
			ModIndex:    0.5,
			CarrierFreq: 0.0,
			Demod:       DemodDiscriminator,
			Tolerance:   1e-3,
		},
		NATS: NATSConfig{
			URLs:           []string{"nats://localhost:4222"},
			Name:           "sigport",
			Subject:        "sigport.samples",
			FrameSize:      256,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			ConnectTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
	}
}

func invalid(format string, args ...any) error {
	return errs.WrapInvalid(errs.ErrInvalidConfig, "Config", "Validate", fmt.Sprintf(format, args...))
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return invalid("log.format %q must be json or text", c.Log.Format)
	}

	if c.Port.Capacity <= 0 {
		return invalid("port.capacity %d must be positive", c.Port.Capacity)
	}
	if c.Port.BlockSize <= 0 {
		return invalid("port.block_size %d must be positive", c.Port.BlockSize)
	}

	if c.Source.Samples < 0 {
		return invalid("source.samples %d cannot be negative", c.Source.Samples)
	}
	if c.Source.Frequency <= 0 || c.Source.Frequency >= 0.5 {
		return invalid("source.frequency %g must be in (0, 0.5) cycles per sample", c.Source.Frequency)
	}
	if c.Source.Amplitude <= 0 {
		return invalid("source.amplitude %g must be positive", c.Source.Amplitude)
	}
	if c.Source.SampleRate < 0 {
		return invalid("source.sample_rate %g cannot be negative", c.Source.SampleRate)
	}

	if err := c.validateModem(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return invalid("metrics.port %d out of range", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics.path %q must start with /", c.Metrics.Path)
		}
	}
	return nil
}

func (c *Config) validateModem() error {
	m := c.Modem
	if m.ModIndex <= 0 || m.ModIndex > 2*math.Pi {
		return invalid("modem.mod_index %g out of range (0, 2π]", m.ModIndex)
	}
	if m.CarrierFreq <= -math.Pi || m.CarrierFreq >= math.Pi {
		return invalid("modem.carrier_freq %g out of range (-π, π)", m.CarrierFreq)
	}
	switch m.Demod {
	case DemodDiscriminator:
		// The instantaneous frequency must stay inside (-π, π] or the
		// phase difference aliases.
		if peak := m.ModIndex*c.Source.Amplitude + math.Abs(m.CarrierFreq); peak >= math.Pi {
			return invalid("peak frequency %g rad/sample aliases; lower modem.mod_index or source.amplitude", peak)
		}
	case DemodPLL:
		if m.PLLBandwidth < 0 || m.PLLBandwidth >= 1 {
			return invalid("modem.pll_bandwidth %g out of range [0, 1)", m.PLLBandwidth)
		}
	default:
		return invalid("modem.demod %q must be %s or %s", m.Demod, DemodDiscriminator, DemodPLL)
	}
	if m.Tolerance < 0 {
		return invalid("modem.tolerance %g cannot be negative", m.Tolerance)
	}
	return nil
}

func (c *Config) validateNATS() error {
	n := c.NATS
	if !n.Enabled {
		return nil
	}
	if len(n.URLs) == 0 {
		return invalid("nats.urls is required when nats is enabled")
	}
	if !isValidSubject(n.Subject) {
		return invalid("nats.subject %q is not a valid publish subject", n.Subject)
	}
	if n.FrameSize <= 0 || n.FrameSize > MaxFrameSamples {
		return invalid("nats.frame_size %d out of range (0, %d]", n.FrameSize, MaxFrameSamples)
	}
	if n.ReconnectWait < 0 || n.ConnectTimeout < 0 {
		return invalid("nats durations cannot be negative")
	}
	if n.TLS.Enabled {
		switch n.TLS.MinVersion {
		case "", "1.2", "1.3":
		default:
			return invalid("nats.tls.min_version %q must be 1.2 or 1.3", n.TLS.MinVersion)
		}
		if (n.TLS.CertFile == "") != (n.TLS.KeyFile == "") {
			return invalid("nats.tls.cert_file and nats.tls.key_file must be set together")
		}
	}
	return nil
}

// isValidSubject reports whether s is a literal NATS subject: dot separated
// non-empty tokens without wildcards or whitespace.
func isValidSubject(s string) bool {
	if s == "" {
		return false
	}
	for _, token := range strings.Split(s, ".") {
		if token == "" || token == "*" || token == ">" {
			return false
		}
		if strings.ContainsAny(token, " \t\r\n*>") {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	clone := *c
	clone.NATS.URLs = append([]string(nil), c.NATS.URLs...)
	clone.NATS.TLS.CAFiles = append([]string(nil), c.NATS.TLS.CAFiles...)
	return &clone
}

// String returns the configuration as YAML with secrets masked.
func (c *Config) String() string {
	masked := c.Clone()
	for _, secret := range []*string{&masked.NATS.Password, &masked.NATS.Token} {
		if *secret != "" {
			*secret = "****"
		}
	}
	data, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
