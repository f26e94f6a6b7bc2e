package main

import (
	"fmt"

	"go.bug.st/serial"
)

// openPort is replaced in tests.
var openPort = serial.Open

// serialTransport is a Transport backed by a serial device.
type serialTransport struct {
	device string
	mode   *serial.Mode
	port   serial.Port
}

// NewSerialTransport returns a closed transport for device at baud.
func NewSerialTransport(device string, baud int) *serialTransport {
	return &serialTransport{
		device: device,
		mode: &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
}

func (s *serialTransport) Open() error {
	if s.port != nil {
		return nil
	}
	port, err := openPort(s.device, s.mode)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.device, err)
	}
	s.port = port
	return nil
}

func (s *serialTransport) IsOpen() bool {
	return s.port != nil
}

func (s *serialTransport) Write(p []byte) (int, error) {
	if s.port == nil {
		return 0, ErrTransportClosed
	}
	return s.port.Write(p)
}

// Close releases the port. Closing a closed transport is a no-op.
func (s *serialTransport) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	if err != nil {
		return fmt.Errorf("closing %s: %w", s.device, err)
	}
	return nil
}
