package main

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when -config is not given. A missing file at
// this path is not an error.
const DefaultConfigPath = "ambisync.yaml"

// SerialOptions configures the link to the LED controller.
type SerialOptions struct {
	Device    string `yaml:"device"`
	Baud      int    `yaml:"baud"`
	Reconnect bool   `yaml:"reconnect"`
}

// SamplingOptions controls how each region is reduced to a color.
type SamplingOptions struct {
	Skip       int     `yaml:"skip"`
	Brightness float64 `yaml:"brightness"`
}

// LoopOptions controls the frame loop.
type LoopOptions struct {
	MaxFPS        int           `yaml:"max_fps"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// Config is read once at startup and never changes while running.
type Config struct {
	Serial   SerialOptions   `yaml:"serial"`
	Layout   Layout          `yaml:"layout"`
	Sampling SamplingOptions `yaml:"sampling"`
	Capture  CaptureOptions  `yaml:"capture"`
	Pipeline LoopOptions     `yaml:"pipeline"`
	Hue      HueOptions      `yaml:"hue"`
	LogLevel string          `yaml:"log_level"`
}

// DefaultConfig returns the settings used for anything the config file
// leaves out.
func DefaultConfig() Config {
	return Config{
		Serial: SerialOptions{
			Device:    "/dev/ttyUSB0",
			Baud:      115200,
			Reconnect: true,
		},
		Layout: DefaultLayout(),
		Sampling: SamplingOptions{
			Skip:       10,
			Brightness: 1,
		},
		Capture:  CaptureOptions{Method: "auto"},
		Pipeline: LoopOptions{StatsInterval: 10 * time.Second},
		LogLevel: "info",
	}
}

// LoadConfig reads path over the defaults. When optional is set, a missing
// file yields the defaults.
func LoadConfig(path string, optional bool) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && optional {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("serial: device is required")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial: invalid baud rate %d", c.Serial.Baud)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if c.Layout.Lights() == 0 {
		return fmt.Errorf("layout: no lights configured")
	}
	if c.Sampling.Skip < 1 {
		return fmt.Errorf("sampling: %w (got %d)", ErrInvalidSkip, c.Sampling.Skip)
	}
	if c.Sampling.Skip > c.Layout.Border {
		return fmt.Errorf("sampling: skip %d exceeds border %d, every region would be empty", c.Sampling.Skip, c.Layout.Border)
	}
	if b := c.Sampling.Brightness; math.IsNaN(b) || math.IsInf(b, 0) || b < 0 {
		return fmt.Errorf("sampling: brightness must be a non-negative number (got %g)", b)
	}
	if c.Pipeline.MaxFPS < 0 {
		return fmt.Errorf("pipeline: max_fps must not be negative (got %d)", c.Pipeline.MaxFPS)
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		return fmt.Errorf("capture: negative size %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return c.Hue.Validate()
}

// PipelineConfig extracts the frame loop settings.
func (c Config) PipelineConfig() PipelineConfig {
	return PipelineConfig{
		Layout:        c.Layout,
		Skip:          c.Sampling.Skip,
		Brightness:    c.Sampling.Brightness,
		MaxFPS:        c.Pipeline.MaxFPS,
		StatsInterval: c.Pipeline.StatsInterval,
	}
}
