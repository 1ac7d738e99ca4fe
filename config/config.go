// Package config provides YAML-based configuration loading for datastorage.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oy3o/binparse"
)

// Config is the root application configuration.
type Config struct {
	// Log holds logging configuration
	Log LogConfig `yaml:"log"`

	// Format controls how decoded values are written
	Format FormatConfig `yaml:"format"`

	// Capture configures acquisition of raw records into a capture file
	Capture CaptureConfig `yaml:"capture"`

	// Convert configures conversion of a capture file into CSV
	Convert ConvertConfig `yaml:"convert"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: console or json
	Format string `yaml:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `yaml:"outputs"`
	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `yaml:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `yaml:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `yaml:"enable"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// FormatConfig sets the delimiter and per-kind specifiers. Specifier keys are
// schema type names such as "float" or "uint16_t"; values may be fmt verbs or
// C printf conversions.
type FormatConfig struct {
	Delimiter  string            `yaml:"delimiter"`
	Specifiers map[string]string `yaml:"specifiers"`
}

// CaptureConfig configures the capture task.
type CaptureConfig struct {
	Schema    string        `yaml:"schema"`
	Transport string        `yaml:"transport"`
	Listen    string        `yaml:"listen"`
	Output    string        `yaml:"output"`
	Period    time.Duration `yaml:"period"`
}

// ConvertConfig configures the CSV converter.
type ConvertConfig struct {
	Schema        string `yaml:"schema"`
	Source        string `yaml:"source"`
	Target        string `yaml:"target"`
	Header        bool   `yaml:"header"`
	ProgressEvery int64  `yaml:"progress_every"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: false,
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Format: FormatConfig{Delimiter: binparse.DefaultDelimiter},
		Capture: CaptureConfig{
			Schema:    "type.json",
			Transport: "udp",
			Listen:    ":10240",
			Output:    "type.dat",
			Period:    time.Millisecond,
		},
		Convert: ConvertConfig{
			Schema:        "type.json",
			Source:        "type.dat",
			Target:        "type.csv",
			Header:        true,
			ProgressEvery: 100000,
		},
	}
}

// Load reads configuration from path over the defaults. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	c.Capture.Transport = strings.ToLower(strings.TrimSpace(c.Capture.Transport))
	switch c.Capture.Transport {
	case "udp", "tcp", "file":
	default:
		return fmt.Errorf("invalid capture.transport: %q", c.Capture.Transport)
	}
	if c.Capture.Period <= 0 {
		return errors.New("capture.period must be positive")
	}

	for name := range c.Format.Specifiers {
		if _, ok := binparse.ParseKind(name); !ok {
			return fmt.Errorf("invalid format.specifiers key: %q", name)
		}
	}
	return nil
}

// Build returns a Format configured from f.
func (f FormatConfig) Build() (*binparse.Format, error) {
	format := binparse.NewFormat()
	if err := format.SetDelimiter(f.Delimiter); err != nil {
		return nil, err
	}
	for name, spec := range f.Specifiers {
		kind, ok := binparse.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", binparse.ErrUnknownKind, name)
		}
		if err := format.SetSpecifier(kind, spec); err != nil {
			return nil, err
		}
	}
	return format, nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
