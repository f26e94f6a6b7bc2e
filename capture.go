package main

import (
	"errors"
	"fmt"
	"image"
	"os/exec"

	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog/log"
)

// ErrInvalidRegion is returned by Capture for a region it cannot grab.
// Odd widths are rejected because the row offset arithmetic of the
// captured buffer warps the image for them.
var ErrInvalidRegion = errors.New("invalid capture region")

// FrameSource captures the screen. The Raster returned by Capture is only
// valid until the next call to Capture.
type FrameSource interface {
	// Capture grabs region, or the whole display when region is nil.
	Capture(region *image.Rectangle) (Raster, error)
	Close() error
}

// CaptureOptions selects and sizes the capture backend.
type CaptureOptions struct {
	Method  string `yaml:"method"`
	Display int    `yaml:"display"`
	// Width and Height scale the stream backends' output. Zero keeps the
	// native display size.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// NewFrameSource opens the backend named by opts.Method. "auto" tries
// PipeWire, then FFmpeg, then X11 and returns the first that works along
// with its name.
func NewFrameSource(opts CaptureOptions) (FrameSource, string, error) {
	switch opts.Method {
	case "pipewire":
		return newPipeWireSource(opts)
	case "ffmpeg":
		return newFFmpegSource(opts)
	case "x11", "screenshot":
		src, err := newScreenshotSource(opts.Display)
		return src, "X11", err
	case "", "auto":
	default:
		return nil, "", fmt.Errorf("unknown capture method %q", opts.Method)
	}

	src, method, err := newPipeWireSource(opts)
	if err == nil {
		return src, method, nil
	}
	log.Debug().Err(err).Msg("PipeWire capture unavailable")

	src, method, err = newFFmpegSource(opts)
	if err == nil {
		return src, method, nil
	}
	log.Debug().Err(err).Msg("FFmpeg capture unavailable")

	x11, err := newScreenshotSource(opts.Display)
	return x11, "X11", err
}

// validateRegion rejects odd-width regions and regions that leave the
// display.
func validateRegion(region, display image.Rectangle) error {
	if region.Dx()%2 != 0 {
		return fmt.Errorf("%w: width should be even (was %d)", ErrInvalidRegion, region.Dx())
	}
	if region.Empty() || !region.In(display) {
		return fmt.Errorf("%w: %v outside %v", ErrInvalidRegion, region, display)
	}
	return nil
}

// screenshotSource grabs frames with kbinani/screenshot, which covers X11,
// macOS and Windows.
type screenshotSource struct {
	bounds image.Rectangle
}

func newScreenshotSource(display int) (*screenshotSource, error) {
	b, err := displayBounds(display)
	if err != nil {
		return nil, err
	}
	return &screenshotSource{bounds: b}, nil
}

func (s *screenshotSource) Capture(region *image.Rectangle) (Raster, error) {
	rect := s.bounds
	if region != nil {
		r := region.Canon()
		local := image.Rect(0, 0, s.bounds.Dx(), s.bounds.Dy())
		if err := validateRegion(r, local); err != nil {
			return nil, err
		}
		rect = r.Add(s.bounds.Min)
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capturing screen: %w", err)
	}
	return newRGBARaster(img), nil
}

func (s *screenshotSource) Close() error { return nil }

// hasExecutable reports whether the named program is on PATH.
func hasExecutable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// displayBounds returns the desktop rectangle of the given display.
func displayBounds(display int) (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	if display < 0 || display >= n {
		return image.Rectangle{}, fmt.Errorf("display %d not found (%d active)", display, n)
	}
	return screenshot.GetDisplayBounds(display), nil
}

// frameSize resolves the stream output size for opts.
func frameSize(opts CaptureOptions) (int, int, error) {
	if opts.Width > 0 && opts.Height > 0 {
		return opts.Width, opts.Height, nil
	}
	b, err := displayBounds(opts.Display)
	if err != nil {
		return 0, 0, err
	}
	return b.Dx(), b.Dy(), nil
}
