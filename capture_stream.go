package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"
)

const firstFrameTimeout = 5 * time.Second

// ErrCaptureStopped is returned by Capture once the capture process has
// exited.
var ErrCaptureStopped = errors.New("capture process exited")

// streamSource reads raw RGB24 frames from a child process (ffmpeg or
// gst-launch) and hands out the most recent one on Capture.
type streamSource struct {
	cancel  context.CancelFunc
	cmd     *exec.Cmd
	closers []io.Closer
	done    chan struct{}
	ready   chan struct{} // closed when first frame is available

	w, h int

	mu     sync.Mutex
	latest []byte

	// raster is handed to callers and overwritten by the next Capture.
	raster rgb24Raster
}

func newStreamSource(w, h int) *streamSource {
	return &streamSource{
		w:      w,
		h:      h,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
		raster: rgb24Raster{buf: make([]byte, w*h*3), w: w, h: h},
	}
}

// start launches cmd and waits for its first frame. On failure everything
// in s.closers has been closed.
func (s *streamSource) start(ctx context.Context, cancel context.CancelFunc, cmd *exec.Cmd, name string) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		s.closeAll()
		return fmt.Errorf("%s stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		s.closeAll()
		return fmt.Errorf("starting %s: %w", name, err)
	}
	s.cancel = cancel
	s.cmd = cmd

	go s.readFrames(stdout)

	select {
	case <-s.ready:
		return nil
	case <-s.done:
		_ = s.Close()
		return fmt.Errorf("%s exited before the first frame", name)
	case <-time.After(firstFrameTimeout):
		_ = s.Close()
		return fmt.Errorf("%s: timed out waiting for first frame", name)
	}
}

func (s *streamSource) readFrames(r io.Reader) {
	defer close(s.done)
	buf := make([]byte, s.w*s.h*3)
	first := true
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		s.mu.Lock()
		if s.latest == nil {
			s.latest = make([]byte, len(buf))
		}
		copy(s.latest, buf)
		s.mu.Unlock()
		if first {
			close(s.ready)
			first = false
		}
	}
}

func (s *streamSource) Capture(region *image.Rectangle) (Raster, error) {
	select {
	case <-s.done:
		return nil, ErrCaptureStopped
	default:
	}

	var crop image.Rectangle
	if region != nil {
		crop = region.Canon()
		if err := validateRegion(crop, image.Rect(0, 0, s.w, s.h)); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.latest == nil {
		s.mu.Unlock()
		return nil, errors.New("no frame captured yet")
	}
	copy(s.raster.buf, s.latest)
	s.mu.Unlock()

	if region != nil {
		return croppedRaster{parent: &s.raster, rect: crop}, nil
	}
	return &s.raster, nil
}

func (s *streamSource) Close() error {
	var err error
	if s.cancel != nil {
		s.cancel()
		<-s.done
		err = s.cmd.Wait()
		s.cancel = nil
	}
	s.closeAll()
	return err
}

func (s *streamSource) closeAll() {
	for _, c := range s.closers {
		c.Close()
	}
	s.closers = nil
}
