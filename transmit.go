package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"
)

// FrameHeader marks the start of every frame on the wire ('s').
const FrameHeader byte = 0x73

// ErrTransportClosed is returned when writing to a transport that is not open.
var ErrTransportClosed = errors.New("transport closed")

// Transport is a byte-oriented link to the LED controller.
type Transport interface {
	Open() error
	Close() error
	IsOpen() bool
	Write(p []byte) (int, error)
}

// Sink receives the ordered color sequence of every frame.
type Sink interface {
	Send(colors []Color) error
	Close() error
}

// EncodeFrame appends the wire form of colors to dst: the header byte
// followed by R, G, B for each light. Alpha is never sent.
func EncodeFrame(dst []byte, colors []Color) []byte {
	dst = append(dst, FrameHeader)
	for _, c := range colors {
		dst = append(dst, c.R, c.G, c.B)
	}
	return dst
}

// TransmitStats counts what happened to frames handed to a Transmitter.
type TransmitStats struct {
	Sent       uint64
	Dropped    uint64
	Reconnects uint64
}

// Transmitter frames color sequences and writes them to a Transport.
// Frames arriving while the transport is closed are dropped. With
// reconnect enabled, a closed transport is reopened on a backoff schedule
// driven by incoming frames, so Send never sleeps.
type Transmitter struct {
	t         Transport
	buf       []byte
	reconnect bool
	bo        *backoff.ExponentialBackOff
	nextOpen  time.Time
	now       func() time.Time
	stats     TransmitStats
}

// NewTransmitter returns a Transmitter writing to t.
func NewTransmitter(t Transport, reconnect bool) *Transmitter {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()
	return &Transmitter{
		t:         t,
		reconnect: reconnect,
		bo:        bo,
		now:       time.Now,
	}
}

// Send writes one frame. A frame for a closed transport is dropped without
// error. A failed write closes the transport and returns the error.
func (tx *Transmitter) Send(colors []Color) error {
	if !tx.t.IsOpen() {
		tx.tryReopen()
	}
	if !tx.t.IsOpen() {
		tx.stats.Dropped++
		log.Debug().Int("lights", len(colors)).Msg("transport closed, frame dropped")
		return nil
	}

	tx.buf = EncodeFrame(tx.buf[:0], colors)
	if _, err := tx.t.Write(tx.buf); err != nil {
		if cerr := tx.t.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("closing transport after write failure")
		}
		tx.nextOpen = tx.now().Add(tx.bo.NextBackOff())
		return fmt.Errorf("writing frame: %w", err)
	}
	tx.stats.Sent++
	return nil
}

func (tx *Transmitter) tryReopen() {
	if !tx.reconnect || tx.now().Before(tx.nextOpen) {
		return
	}
	if err := tx.t.Open(); err != nil {
		wait := tx.bo.NextBackOff()
		tx.nextOpen = tx.now().Add(wait)
		log.Warn().Err(err).Dur("retry_in", wait).Msg("reopening transport failed")
		return
	}
	tx.bo.Reset()
	tx.stats.Reconnects++
	log.Info().Msg("transport reopened")
}

// Stats returns the transmitter's counters.
func (tx *Transmitter) Stats() TransmitStats {
	return tx.stats
}

// Close closes the underlying transport.
func (tx *Transmitter) Close() error {
	if !tx.t.IsOpen() {
		return nil
	}
	return tx.t.Close()
}
