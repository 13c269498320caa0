// Package transport moves rendered frames to lighting hardware: Enttec-style
// serial DMX widgets, Art-Net nodes and WLED controllers.
package transport

import (
	"context"
	"errors"
	"fmt"

	"tileshow/lib/frame"
	"tileshow/lib/project"
)

var (
	// ErrLinkLost reports that a point-to-point link is gone and further
	// sends cannot succeed until the output is reopened.
	ErrLinkLost = errors.New("link lost")

	ErrUnknownKind = errors.New("unknown output kind")
	ErrWrongFrame  = errors.New("frame does not match transport")
)

type Transport interface {
	Send(ctx context.Context, out frame.Output) error
	Close() error
}

// Open connects to the device described by out.
func Open(out project.Output) (Transport, error) {
	switch out.Kind {
	case project.SerialDMX:
		return OpenSerial(out.Address)
	case project.ArtNet:
		return DialArtNet(out.Address, out.Universe)
	case project.Wled:
		return NewWled(out.Address), nil
	}
	return nil, fmt.Errorf("transport: output %q kind %q: %w", out.ID, out.Kind, ErrUnknownKind)
}
