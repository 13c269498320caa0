package osc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"tileshow/lib/logging"
)

const DefaultPort = 8000

type Handler func(Message)

type Server struct {
	conn    net.PacketConn
	handler Handler
}

func Listen(addr string, h Handler) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("osc: listen %s: %w", addr, err)
	}
	return &Server{conn: conn, handler: h}, nil
}

func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Serve dispatches incoming messages until ctx ends or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, 65536)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("osc: read: %w", err)
		}
		m, err := Parse(buf[:n])
		if err != nil {
			logging.Debugf("osc: bad packet from %s: %v", from, err)
			continue
		}
		logging.Tracef("osc: %s %v", m.Address, m.Args)
		s.handler(m)
	}
}

func (s *Server) Close() error {
	return s.conn.Close()
}

// Send encodes m and writes it to addr, for tests and simple clients.
func Send(addr string, m Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("osc: dial %s: %w", addr, err)
	}
	defer conn.Close()
	_, err = conn.Write(data)
	return err
}
