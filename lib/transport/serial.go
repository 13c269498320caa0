package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"tileshow/lib/frame"
)

const (
	enttecStart    = 0x7E
	enttecEnd      = 0xE7
	enttecSendDMX  = 6
	enttecBaudRate = 57600
)

// Serial drives a DMX USB Pro compatible widget.
type Serial struct {
	mu   sync.Mutex
	port io.WriteCloser
	buf  []byte
}

func OpenSerial(path string) (*Serial, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: enttecBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", path, err)
	}
	return NewSerial(port), nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.WriteCloser) *Serial {
	return &Serial{port: port}
}

func EncodeEnttec(buf []byte, universe *[frame.UniverseSize]byte) []byte {
	n := len(universe) + 1
	buf = append(buf[:0], enttecStart, enttecSendDMX, byte(n), byte(n>>8), 0)
	buf = append(buf, universe[:]...)
	return append(buf, enttecEnd)
}

func (s *Serial) Send(ctx context.Context, out frame.Output) error {
	d, ok := out.(*frame.DMX)
	if !ok {
		return fmt.Errorf("transport: serial got %T: %w", out, ErrWrongFrame)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = EncodeEnttec(s.buf, &d.Universe)
	if _, err := s.port.Write(s.buf); err != nil {
		return fmt.Errorf("transport: serial write: %w: %w", ErrLinkLost, err)
	}
	return nil
}

func (s *Serial) Close() error {
	return s.port.Close()
}
