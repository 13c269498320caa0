package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"tileshow/lib/frame"
)

const (
	ArtNetPort    = 6454
	artOpDMX      = 0x5000
	artProtoVer   = 14
	artHeaderSize = 18
)

var artID = []byte("Art-Net\x00")

type ArtNet struct {
	mu       sync.Mutex
	conn     net.Conn
	universe uint16
	seq      uint8
	buf      []byte
}

func DialArtNet(addr string, universe int) (*ArtNet, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, fmt.Sprint(ArtNetPort))
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: artnet dial %s: %w", addr, err)
	}
	return &ArtNet{conn: conn, universe: uint16(universe)}, nil
}

// EncodeArtDMX builds an ArtDmx packet. Sequence 0 disables reordering on
// the receiver, so callers cycle 1..255.
func EncodeArtDMX(buf []byte, seq uint8, universe uint16, data *[frame.UniverseSize]byte) []byte {
	buf = append(buf[:0], artID...)
	buf = binary.LittleEndian.AppendUint16(buf, artOpDMX)
	buf = binary.BigEndian.AppendUint16(buf, artProtoVer)
	buf = append(buf, seq, 0)
	buf = binary.LittleEndian.AppendUint16(buf, universe)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(data)))
	return append(buf, data[:]...)
}

func (a *ArtNet) Send(ctx context.Context, out frame.Output) error {
	d, ok := out.(*frame.DMX)
	if !ok {
		return fmt.Errorf("transport: artnet got %T: %w", out, ErrWrongFrame)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	if a.seq == 0 {
		a.seq = 1
	}
	a.buf = EncodeArtDMX(a.buf, a.seq, a.universe, &d.Universe)
	if _, err := a.conn.Write(a.buf); err != nil {
		return fmt.Errorf("transport: artnet send: %w", err)
	}
	return nil
}

func (a *ArtNet) Close() error {
	return a.conn.Close()
}
