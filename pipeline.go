package main

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"
)

// PipelineConfig is fixed for the lifetime of a Pipeline.
type PipelineConfig struct {
	Layout     Layout
	Skip       int
	Brightness float64
	// MaxFPS caps the frame rate. Zero lets the loop run as fast as
	// capture, reduction and sending allow.
	MaxFPS int
	// StatsInterval is how often Run logs its counters. Zero disables it.
	StatsInterval time.Duration
}

// Stats counts frames processed by a Pipeline.
type Stats struct {
	Frames   uint64
	Failed   uint64
	Capture  time.Duration
	Reduce   time.Duration
	Send     time.Duration
	Transmit TransmitStats
}

// Pipeline captures the screen, reduces it to one color per light and
// hands the sequence to its sinks, one frame at a time.
type Pipeline struct {
	cfg   PipelineConfig
	src   FrameSource
	sinks []Sink

	// plan is valid for rasters of planSize.
	plan     []image.Rectangle
	planSize image.Point

	colors []Color
	stats  Stats
}

// NewPipeline returns a Pipeline reading from src. The pipeline does not
// own src or the sinks; the caller closes them.
func NewPipeline(cfg PipelineConfig, src FrameSource, sinks ...Sink) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		src:    src,
		sinks:  sinks,
		colors: make([]Color, 0, cfg.Layout.Lights()),
	}
}

// regions returns the planned regions for a raster of the given size,
// replanning only when the size changes.
func (p *Pipeline) regions(w, h int) ([]image.Rectangle, error) {
	size := image.Pt(w, h)
	if p.plan != nil && p.planSize == size {
		return p.plan, nil
	}
	plan, err := Plan(w, h, p.cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("planning regions for %dx%d: %w", w, h, err)
	}
	if p.plan != nil {
		log.Info().Int("width", w).Int("height", h).Msg("screen size changed, regions replanned")
	}
	p.plan, p.planSize = plan, size
	return plan, nil
}

// Frame runs one capture, reduce and send cycle. Nothing is sent when
// capture or reduction fails.
func (p *Pipeline) Frame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	raster, err := p.src.Capture(nil)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	captured := time.Now()

	plan, err := p.regions(raster.Width(), raster.Height())
	if err != nil {
		return err
	}

	p.colors = p.colors[:0]
	for i, region := range plan {
		c, err := AverageColor(raster, region, p.cfg.Skip, p.cfg.Brightness)
		if err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
		p.colors = append(p.colors, c)
	}
	reduced := time.Now()

	var sendErr error
	for _, s := range p.sinks {
		if err := s.Send(p.colors); err != nil && sendErr == nil {
			sendErr = err
		}
	}
	done := time.Now()

	p.stats.Capture = captured.Sub(start)
	p.stats.Reduce = reduced.Sub(captured)
	p.stats.Send = done.Sub(reduced)
	log.Debug().
		Dur("capture", p.stats.Capture).
		Dur("reduce", p.stats.Reduce).
		Dur("send", p.stats.Send).
		Msg("frame")
	return sendErr
}

// Run processes frames until ctx is cancelled. Per-frame errors are logged
// and the loop moves on to the next frame.
func (p *Pipeline) Run(ctx context.Context) error {
	var minInterval time.Duration
	if p.cfg.MaxFPS > 0 {
		minInterval = time.Second / time.Duration(p.cfg.MaxFPS)
	}
	lastStats := time.Now()
	var lastFrames uint64
	// lastErr is the message of the failure already logged at Warn.
	// Repeats of it drop to Debug until a frame succeeds.
	var lastErr string

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		start := time.Now()
		if err := p.Frame(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.stats.Failed++
			if msg := err.Error(); msg != lastErr {
				log.Warn().Err(err).Msg("frame failed")
				lastErr = msg
			} else {
				log.Debug().Err(err).Msg("frame failed")
			}
		} else {
			if lastErr != "" {
				log.Info().Uint64("failed", p.stats.Failed).Msg("frames recovered")
				lastErr = ""
			}
			p.stats.Frames++
		}

		if p.cfg.StatsInterval > 0 && time.Since(lastStats) >= p.cfg.StatsInterval {
			p.logStats(float64(p.stats.Frames-lastFrames) / time.Since(lastStats).Seconds())
			lastStats = time.Now()
			lastFrames = p.stats.Frames
		}

		if wait := minInterval - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}
	}
}

func (p *Pipeline) logStats(fps float64) {
	s := p.Stats()
	log.Info().
		Uint64("frames", s.Frames).
		Uint64("failed", s.Failed).
		Uint64("sent", s.Transmit.Sent).
		Uint64("dropped", s.Transmit.Dropped).
		Uint64("reconnects", s.Transmit.Reconnects).
		Float64("fps", fps).
		Dur("capture", s.Capture).
		Dur("reduce", s.Reduce).
		Dur("send", s.Send).
		Msg("pipeline stats")
}

// Stats returns the pipeline counters, including those of any
// Transmitter among its sinks.
func (p *Pipeline) Stats() Stats {
	s := p.stats
	for _, sink := range p.sinks {
		if tx, ok := sink.(*Transmitter); ok {
			t := tx.Stats()
			s.Transmit.Sent += t.Sent
			s.Transmit.Dropped += t.Dropped
			s.Transmit.Reconnects += t.Reconnects
		}
	}
	return s
}
