package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// maxScanLines bounds how many serial lines NextFix consumes while
	// looking for a decodable GGA sentence in a single call.
	maxScanLines = 64

	defaultBaudRate = 9600
)

var (
	// ErrNoDevice is returned when no serial port can be selected as a
	// positioning source. Positioning stays disabled for the run.
	ErrNoDevice = errors.New("gps: no positioning device available")

	// ErrPollTimeout is returned when the selected port never produced a
	// valid fix within the configured timeout.
	ErrPollTimeout = errors.New("gps: no valid fix before poll timeout")
)

// PortChooser resolves an ambiguous port choice. It receives candidate
// port names and returns the chosen one. The CLI wires an interactive
// prompt here; tests inject a canned answer.
type PortChooser func(ports []string) (string, error)

// Receiver reads NMEA sentences from a positioning device, one line per
// blocking read.
type Receiver struct {
	rc     io.ReadCloser
	r      *bufio.Reader
	port   string
	logger *slog.Logger
}

// WithLogger sets the logger for the receiver.
func WithLogger(logger *slog.Logger) func(*Receiver) {
	return func(r *Receiver) {
		r.logger = logger
	}
}

// NewReceiver wraps an open line-oriented stream. Callers normally use
// Open; tests hand in an in-memory stream.
func NewReceiver(rc io.ReadCloser, port string, options ...func(*Receiver)) *Receiver {
	r := Receiver{
		rc:     rc,
		r:      bufio.NewReader(rc),
		port:   port,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Open opens the named serial port as a positioning source.
func Open(port string, baudRate int, options ...func(*Receiver)) (*Receiver, error) {
	if baudRate <= 0 {
		baudRate = defaultBaudRate
	}

	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("gps: opening serial port %s: %w", port, err)
	}

	return NewReceiver(p, port, options...), nil
}

// Port returns the serial port name the receiver reads from.
func (r *Receiver) Port() string {
	return r.port
}

// Close releases the underlying port.
func (r *Receiver) Close() error {
	return r.rc.Close()
}

// NextFix reads serial lines until it decodes a GGA sentence, skipping
// non-candidate and malformed lines. It returns ErrNoFix when the
// receiver reports quality zero, and gives up after a bounded number of
// lines so one call cannot stall a tick on a chatty device.
func (r *Receiver) NextFix(ctx context.Context) (*Fix, error) {
	for i := 0; i < maxScanLines; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := r.r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("gps: reading from %s: %w", r.port, err)
		}

		if !IsCandidate(line) {
			continue
		}

		fix, err := DecodeGGA(line)
		if errors.Is(err, ErrNoFix) {
			return nil, err
		}
		if err != nil {
			r.logger.Debug("skipping malformed GGA sentence",
				slog.String("port", r.port),
				slog.String("error", err.Error()))
			continue
		}

		return fix, nil
	}

	return nil, fmt.Errorf("gps: no GGA sentence in %d lines from %s", maxScanLines, r.port)
}

// WaitForFix polls the receiver in one-second steps until it observes a
// valid fix or the timeout elapses. A timeout means positioning should
// be disabled for the rest of the run.
func (r *Receiver) WaitForFix(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		fix, err := r.NextFix(ctx)
		if err == nil && fix.Valid() {
			r.logger.Info("positioning device is producing valid fixes",
				slog.String("port", r.port),
				slog.Int("satellites", fix.Satellites))
			return nil
		}
		if err != nil && !errors.Is(err, ErrNoFix) {
			r.logger.Debug("waiting for fix", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	return ErrPollTimeout
}

// SelectPort picks the serial port to use as a positioning source:
// a port whose USB product string self-identifies as a GPS wins; with
// exactly one candidate it is used unconditionally; several candidates
// defer to the chooser; none means positioning is disabled (ErrNoDevice).
func SelectPort(choose PortChooser) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("gps: enumerating serial ports: %w", err)
	}

	var names []string
	for _, p := range ports {
		if strings.Contains(strings.ToUpper(p.Product), "GPS") {
			return p.Name, nil
		}
		names = append(names, p.Name)
	}

	switch len(names) {
	case 0:
		return "", ErrNoDevice
	case 1:
		return names[0], nil
	}

	if choose == nil {
		return "", fmt.Errorf("gps: %d candidate ports and no chooser: %w", len(names), ErrNoDevice)
	}

	name, err := choose(names)
	if err != nil {
		return "", fmt.Errorf("gps: choosing port: %w", err)
	}
	for _, n := range names {
		if n == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("gps: chosen port %s is not a candidate", name)
}
