package main

import (
	"context"
	"fmt"
	"os/exec"
)

func newPipeWireSource(opts CaptureOptions) (FrameSource, string, error) {
	if !hasExecutable("gst-launch-1.0") {
		return nil, "", fmt.Errorf("gst-launch-1.0 not found")
	}

	w, h, err := frameSize(opts)
	if err != nil {
		return nil, "", err
	}

	sess, err := openScreenCast()
	if err != nil {
		return nil, "", fmt.Errorf("pipewire portal: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// ExtraFiles[0] becomes fd 3 in the child.
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", "-q",
		"pipewiresrc", fmt.Sprintf("path=%d", sess.nodeID), "fd=3",
		"!", "videoconvert",
		"!", "videoscale",
		"!", fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", w, h),
		"!", "fdsink", "fd=1",
	)
	cmd.ExtraFiles = append(cmd.ExtraFiles, sess.remote)

	s := newStreamSource(w, h)
	s.closers = append(s.closers, sess.remote, sess.conn)
	if err := s.start(ctx, cancel, cmd, "gstreamer"); err != nil {
		return nil, "", err
	}
	return s, "PipeWire", nil
}
