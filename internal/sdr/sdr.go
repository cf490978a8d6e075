// Package sdr provides the hardware sample source for the acquisition
// loop: fixed-length blocks of complex baseband samples read from a
// software-defined radio.
package sdr

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by ReadBlock after Close.
var ErrSourceClosed = errors.New("sdr: source is closed")

// Source produces blocks of complex baseband samples. Implementations
// block in ReadBlock until a full block is available; the context only
// needs to be honored coarsely (between reads).
type Source interface {
	// ReadBlock returns the next n samples from the device.
	ReadBlock(ctx context.Context, n int) ([]complex128, error)

	// Close releases the device. It is safe to call more than once.
	Close() error
}
