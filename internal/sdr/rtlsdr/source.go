// Package rtlsdr reads complex baseband blocks from an RTL-SDR dongle
// by streaming raw I/Q bytes from the `rtl_sdr` capture tool.
package rtlsdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/k7rfm/rfmap/internal/sdr"
)

const (
	Runtime = "rtl_sdr"
	Device  = "RTL-SDR"
)

// WithLogger sets the logger for the source.
func WithLogger(logger *slog.Logger) func(*Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("device", Device))
	}
}

// Source streams fixed-length sample blocks from one RTL-SDR device.
// The capture process runs for the lifetime of the source; each
// ReadBlock consumes the next 2n bytes of interleaved uint8 I/Q and
// converts them to unit-range complex samples.
type Source struct {
	cmd    *exec.Cmd
	stdout *bufio.Reader
	cancel context.CancelFunc
	logger *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	buf []byte
}

// New starts the capture process for the configured device. It fails
// fast when the capture tool is missing or the device cannot be opened.
func New(ctx context.Context, config *Config, options ...func(*Source)) (*Source, error) {
	binPath, err := sdr.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("rtlsdr: finding runtime: %w", err)
	}

	args, err := config.Args()
	if err != nil {
		return nil, fmt.Errorf("rtlsdr: building args: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rtlsdr: creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rtlsdr: creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("rtlsdr: starting %s: %w", Runtime, err)
	}

	s := Source{
		cmd:    cmd,
		stdout: bufio.NewReaderSize(stdout, 1<<16),
		cancel: cancel,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	go s.handleStderr(stderr)

	// The tool exits immediately when the dongle is missing or busy;
	// peeking at the stream surfaces that at configuration time instead
	// of on the first tick.
	if _, err = s.stdout.Peek(2); err != nil {
		s.cancel()
		_ = cmd.Wait()
		return nil, fmt.Errorf("rtlsdr: device did not start streaming: %w", err)
	}

	s.logger.Info("capture started",
		slog.Int64("centerFrequency", config.CenterFrequency),
		slog.Int64("sampleRate", config.SampleRate))

	return &s, nil
}

// ReadBlock returns the next n complex samples. Raw bytes are centered
// on 127.5 and scaled to [-1, 1].
func (s *Source) ReadBlock(ctx context.Context, n int) ([]complex128, error) {
	if s.closed.Load() {
		return nil, sdr.ErrSourceClosed
	}
	if n <= 0 {
		return nil, fmt.Errorf("rtlsdr: block length must be positive: %d", n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(s.buf) != 2*n {
		s.buf = make([]byte, 2*n)
	}
	if _, err := io.ReadFull(s.stdout, s.buf); err != nil {
		return nil, fmt.Errorf("rtlsdr: reading sample block: %w", err)
	}

	samples := make([]complex128, n)
	for i := range samples {
		re := (float64(s.buf[2*i]) - 127.5) / 127.5
		im := (float64(s.buf[2*i+1]) - 127.5) / 127.5
		samples[i] = complex(re, im)
	}

	return samples, nil
}

// Close terminates the capture process and releases the device. It is
// safe to call multiple times and on every exit path.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()

		if err := s.cmd.Wait(); err != nil && !isExpectedExit(err) {
			s.closeErr = fmt.Errorf("rtlsdr: capture process exited: %w", err)
		}
	})

	return s.closeErr
}

func (s *Source) handleStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.logger.Warn(fmt.Sprintf("%s >> %s", Runtime, line))
	}
}

// isExpectedExit filters the exit statuses produced by cancelling the
// capture process ourselves.
func isExpectedExit(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// rtl_sdr killed by our cancel
		return exitErr.ExitCode() == -1
	}
	return false
}
