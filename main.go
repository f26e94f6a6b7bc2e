package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "pair" {
		if err := runPairing(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := parseConfig(args, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("ambisync stopped")
		stop()
		os.Exit(1)
	}
}

// parseConfig loads the config file named by -config and applies any
// flags given explicitly on top of it.
func parseConfig(args []string, output io.Writer) (Config, error) {
	fs := flag.NewFlagSet("ambisync", flag.ContinueOnError)
	fs.SetOutput(output)

	def := DefaultConfig()
	var (
		configPath = fs.String("config", DefaultConfigPath, "path to the YAML config file")
		device     = fs.String("device", def.Serial.Device, "serial device of the LED controller")
		baud       = fs.Int("baud", def.Serial.Baud, "serial baud rate")
		method     = fs.String("capture", def.Capture.Method, "capture method: auto | pipewire | ffmpeg | x11")
		logLevel   = fs.String("log-level", def.LogLevel, "log level: debug | info | warn | error")
		brightness = fs.Float64("brightness", def.Sampling.Brightness, "brightness multiplier")
		skip       = fs.Int("skip", def.Sampling.Skip, "sample every n-th pixel of each region")
		maxFPS     = fs.Int("max-fps", def.Pipeline.MaxFPS, "frame rate cap, 0 for none")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := LoadConfig(*configPath, !set["config"])
	if err != nil {
		return Config{}, err
	}

	if set["device"] {
		cfg.Serial.Device = *device
	}
	if set["baud"] {
		cfg.Serial.Baud = *baud
	}
	if set["capture"] {
		cfg.Capture.Method = *method
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if set["brightness"] {
		cfg.Sampling.Brightness = *brightness
	}
	if set["skip"] {
		cfg.Sampling.Skip = *skip
	}
	if set["max-fps"] {
		cfg.Pipeline.MaxFPS = *maxFPS
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// run opens the capture backend and the sinks, runs the frame loop until
// ctx is cancelled and releases everything on the way out.
func run(ctx context.Context, cfg Config) error {
	src, method, err := NewFrameSource(cfg.Capture)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Debug().Err(err).Msg("closing capture")
		}
	}()

	probe, err := src.Capture(nil)
	if err != nil {
		return fmt.Errorf("first capture: %w", err)
	}
	log.Info().
		Str("method", method).
		Int("width", probe.Width()).
		Int("height", probe.Height()).
		Int("lights", cfg.Layout.Lights()).
		Msg("capturing")

	serialPort := NewSerialTransport(cfg.Serial.Device, cfg.Serial.Baud)
	if err := serialPort.Open(); err != nil {
		if !cfg.Serial.Reconnect {
			return err
		}
		log.Warn().Err(err).Msg("serial port unavailable, frames are dropped until it opens")
	}
	tx := NewTransmitter(serialPort, cfg.Serial.Reconnect)
	defer func() {
		if err := tx.Close(); err != nil {
			log.Warn().Err(err).Msg("closing serial port")
		}
	}()

	sinks := []Sink{tx}
	if cfg.Hue.Enabled {
		hue, err := NewHueSink(ctx, cfg.Hue)
		if err != nil {
			return fmt.Errorf("starting hue mirror: %w", err)
		}
		defer func() {
			if err := hue.Close(); err != nil {
				log.Warn().Err(err).Msg("stopping hue mirror")
			}
		}()
		sinks = append(sinks, hue)
	}

	p := NewPipeline(cfg.PipelineConfig(), src, sinks...)
	log.Info().Str("device", cfg.Serial.Device).Int("baud", cfg.Serial.Baud).Msg("streaming")
	err = p.Run(ctx)
	s := p.Stats()
	log.Info().
		Uint64("frames", s.Frames).
		Uint64("failed", s.Failed).
		Uint64("dropped", s.Transmit.Dropped).
		Msg("stopped")
	return err
}
