package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records frames written to it.
type fakeTransport struct {
	open     bool
	openErr  error
	writeErr error
	opens    int
	closes   int
	frames   [][]byte
}

func (f *fakeTransport) Open() error {
	f.opens++
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.closes++
	f.open = false
	return nil
}

func (f *fakeTransport) IsOpen() bool { return f.open }

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.frames = append(f.frames, append([]byte(nil), p...))
	return len(p), nil
}

func TestEncodeFrame(t *testing.T) {
	colors := []Color{
		{R: 1, G: 2, B: 3, A: 4},
		{R: 255, G: 128, B: 0, A: 255},
		{R: 10, G: 20, B: 30},
	}

	got := EncodeFrame(nil, colors)

	require.Len(t, got, 1+3*len(colors))
	assert.Equal(t, byte(115), got[0])
	assert.Equal(t, []byte{115, 1, 2, 3, 255, 128, 0, 10, 20, 30}, got)
}

func TestEncodeFrame_NoLights(t *testing.T) {
	assert.Equal(t, []byte{FrameHeader}, EncodeFrame(nil, nil))
}

func TestEncodeFrame_ReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 64)
	got := EncodeFrame(buf, []Color{{R: 9}})
	assert.Equal(t, []byte{FrameHeader, 9, 0, 0}, got)
	assert.Equal(t, &buf[:1][0], &got[0])
}

func TestTransmitter_Send(t *testing.T) {
	ft := &fakeTransport{open: true}
	tx := NewTransmitter(ft, false)

	require.NoError(t, tx.Send([]Color{{R: 1, G: 2, B: 3, A: 99}}))
	require.NoError(t, tx.Send([]Color{{R: 4, G: 5, B: 6}}))

	require.Len(t, ft.frames, 2)
	assert.Equal(t, []byte{0x73, 1, 2, 3}, ft.frames[0])
	assert.Equal(t, []byte{0x73, 4, 5, 6}, ft.frames[1])
	assert.Equal(t, TransmitStats{Sent: 2}, tx.Stats())
}

func TestTransmitter_DropsWhenClosed(t *testing.T) {
	ft := &fakeTransport{}
	tx := NewTransmitter(ft, false)

	require.NoError(t, tx.Send([]Color{{R: 1}}))

	assert.Empty(t, ft.frames)
	assert.Zero(t, ft.opens, "no reopen without reconnect")
	assert.Equal(t, uint64(1), tx.Stats().Dropped)
}

func TestTransmitter_WriteErrorClosesTransport(t *testing.T) {
	ft := &fakeTransport{open: true, writeErr: errors.New("unplugged")}
	tx := NewTransmitter(ft, false)

	err := tx.Send([]Color{{R: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unplugged")
	assert.False(t, ft.IsOpen())

	// Next frame is dropped rather than written.
	ft.writeErr = nil
	require.NoError(t, tx.Send([]Color{{R: 1}}))
	assert.Empty(t, ft.frames)
	assert.Equal(t, uint64(1), tx.Stats().Dropped)
}

func TestTransmitter_ReconnectsWithBackoff(t *testing.T) {
	ft := &fakeTransport{openErr: errors.New("no such device")}
	tx := NewTransmitter(ft, true)
	now := time.Unix(1000, 0)
	tx.now = func() time.Time { return now }

	// First attempt fails and schedules the next one.
	require.NoError(t, tx.Send([]Color{{R: 1}}))
	assert.Equal(t, 1, ft.opens)

	// Still inside the backoff window, no attempt.
	require.NoError(t, tx.Send([]Color{{R: 1}}))
	assert.Equal(t, 1, ft.opens)
	assert.Equal(t, uint64(2), tx.Stats().Dropped)

	// After the window the port comes back.
	ft.openErr = nil
	now = now.Add(time.Minute)
	require.NoError(t, tx.Send([]Color{{R: 7, G: 8, B: 9}}))
	assert.Equal(t, 2, ft.opens)
	require.Len(t, ft.frames, 1)
	assert.Equal(t, []byte{0x73, 7, 8, 9}, ft.frames[0])
	assert.Equal(t, TransmitStats{Sent: 1, Dropped: 2, Reconnects: 1}, tx.Stats())
}

func TestTransmitter_Close(t *testing.T) {
	ft := &fakeTransport{open: true}
	tx := NewTransmitter(ft, false)

	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())
	assert.Equal(t, 1, ft.closes)
}
