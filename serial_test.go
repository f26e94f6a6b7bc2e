package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// MockSerialPort is a mock implementation of serial.Port for testing
type MockSerialPort struct {
	writtenData []byte
	writeError  error
	closeError  error
	closed      bool
}

func (m *MockSerialPort) Break(time.Duration) error                            { return nil }
func (m *MockSerialPort) Drain() error                                         { return nil }
func (m *MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *MockSerialPort) ResetInputBuffer() error                              { return nil }
func (m *MockSerialPort) ResetOutputBuffer() error                             { return nil }
func (m *MockSerialPort) SetDTR(dtr bool) error                                { return nil }
func (m *MockSerialPort) SetMode(mode *serial.Mode) error                      { return nil }
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error                 { return nil }
func (m *MockSerialPort) SetRTS(rts bool) error                                { return nil }
func (m *MockSerialPort) Read(p []byte) (int, error)                           { return 0, nil }

func (m *MockSerialPort) Write(p []byte) (int, error) {
	if m.writeError != nil {
		return 0, m.writeError
	}
	m.writtenData = append(m.writtenData, p...)
	return len(p), nil
}

func (m *MockSerialPort) Close() error {
	m.closed = true
	return m.closeError
}

// withMockPort makes serial.Open hand out mock for the duration of the test.
func withMockPort(t *testing.T, mock *MockSerialPort, openErr error) (gotName *string, gotMode **serial.Mode) {
	t.Helper()
	var name string
	var mode *serial.Mode
	openPort = func(n string, m *serial.Mode) (serial.Port, error) {
		name, mode = n, m
		if openErr != nil {
			return nil, openErr
		}
		return mock, nil
	}
	t.Cleanup(func() { openPort = serial.Open })
	return &name, &mode
}

func TestSerialTransport_OpenUsesMode(t *testing.T) {
	mock := &MockSerialPort{}
	name, mode := withMockPort(t, mock, nil)

	st := NewSerialTransport("/dev/ttyUSB3", 115200)
	require.False(t, st.IsOpen())
	require.NoError(t, st.Open())
	require.True(t, st.IsOpen())

	assert.Equal(t, "/dev/ttyUSB3", *name)
	assert.Equal(t, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}, *mode)
}

func TestSerialTransport_WriteAndClose(t *testing.T) {
	mock := &MockSerialPort{}
	withMockPort(t, mock, nil)

	st := NewSerialTransport("/dev/ttyUSB0", 9600)
	require.NoError(t, st.Open())

	n, err := st.Write([]byte{0x73, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0x73, 1, 2, 3}, mock.writtenData)

	require.NoError(t, st.Close())
	assert.True(t, mock.closed)
	assert.False(t, st.IsOpen())
	require.NoError(t, st.Close(), "closing twice is a no-op")

	_, err = st.Write([]byte{0})
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestSerialTransport_OpenError(t *testing.T) {
	withMockPort(t, nil, errors.New("permission denied"))

	st := NewSerialTransport("/dev/ttyACM0", 115200)
	err := st.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/ttyACM0")
	assert.False(t, st.IsOpen())
}

func TestSerialTransport_CloseError(t *testing.T) {
	mock := &MockSerialPort{closeError: errors.New("io error")}
	withMockPort(t, mock, nil)

	st := NewSerialTransport("/dev/ttyUSB0", 115200)
	require.NoError(t, st.Open())
	require.Error(t, st.Close())
	assert.False(t, st.IsOpen(), "port is released even when close fails")
}

func TestSerialTransport_Frames(t *testing.T) {
	mock := &MockSerialPort{}
	withMockPort(t, mock, nil)

	tx := NewTransmitter(NewSerialTransport("/dev/ttyUSB0", 115200), true)
	colors := make([]Color, 70)
	for i := range colors {
		colors[i] = Color{R: uint8(i), G: uint8(2 * i), B: uint8(3 * i), A: 255}
	}

	require.NoError(t, tx.Send(colors))

	require.Len(t, mock.writtenData, 1+3*70)
	assert.Equal(t, byte('s'), mock.writtenData[0])
	for i, c := range colors {
		assert.Equal(t, []byte{c.R, c.G, c.B}, mock.writtenData[1+3*i:4+3*i], "light %d", i)
	}
	assert.Equal(t, uint64(1), tx.Stats().Reconnects)
}
