package transport

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

const serialReadTimeout = 100 * time.Millisecond

// SerialLink is a point-to-point link over a serial port, such as a radio
// modem. Both ends must be attached to a node as pre-established links.
type SerialLink struct {
	name   string
	port   io.ReadWriteCloser
	closed atomic.Bool
}

var _ Conn = (*SerialLink)(nil)

func OpenSerial(portName string, baud int) (*SerialLink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	// bounded reads let Close interrupt a blocked reader
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", portName, err)
	}
	return newSerialLink(portName, port), nil
}

func newSerialLink(name string, port io.ReadWriteCloser) *SerialLink {
	return &SerialLink{name: name, port: port}
}

// Read blocks until at least one byte arrives or the link is closed. A
// read timeout on the port shows up as an empty read and is retried.
func (s *SerialLink) Read(p []byte) (int, error) {
	for {
		if s.closed.Load() {
			return 0, io.EOF
		}
		n, err := s.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		if len(p) == 0 {
			return 0, nil
		}
	}
}

func (s *SerialLink) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return s.port.Write(p)
}

func (s *SerialLink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.port.Close()
}

func (s *SerialLink) RemoteAddr() string {
	return "serial:" + s.name
}
