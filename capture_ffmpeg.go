package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

func newFFmpegSource(opts CaptureOptions) (FrameSource, string, error) {
	if !hasExecutable("ffmpeg") {
		return nil, "", fmt.Errorf("ffmpeg not found")
	}

	display := os.Getenv("DISPLAY")
	if display == "" {
		return nil, "", fmt.Errorf("DISPLAY not set")
	}

	b, err := displayBounds(opts.Display)
	if err != nil {
		return nil, "", err
	}
	w, h, err := frameSize(opts)
	if err != nil {
		return nil, "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin",
		"-loglevel", "error",
		"-f", "x11grab",
		"-video_size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"-i", fmt.Sprintf("%s.0+%d,%d", display, b.Min.X, b.Min.Y),
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	s := newStreamSource(w, h)
	if err := s.start(ctx, cancel, cmd, "ffmpeg"); err != nil {
		return nil, "", err
	}
	return s, "FFmpeg", nil
}
