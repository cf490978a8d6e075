// Package app wires the collector binary: it builds the signal source,
// classification scale, positioning receiver and record sinks from the
// configuration, then hands them to the acquisition loop.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/k7rfm/rfmap/internal/announce"
	"github.com/k7rfm/rfmap/internal/collector"
	"github.com/k7rfm/rfmap/internal/dsp"
	"github.com/k7rfm/rfmap/internal/gps"
	"github.com/k7rfm/rfmap/internal/record"
	"github.com/k7rfm/rfmap/internal/scale"
	"github.com/k7rfm/rfmap/internal/sdr/rtlsdr"
	"github.com/k7rfm/rfmap/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	sc, err := buildScale(&config.Radio)
	if err != nil {
		return err
	}

	window, err := dsp.NewWindow(config.Radio.Window, config.Radio.BlockSize)
	if err != nil {
		return err
	}

	source, err := rtlsdr.New(ctx, &rtlsdr.Config{
		CenterFrequency:     config.Radio.ListeningFrequency,
		SampleRate:          int64(config.Radio.SampleRate),
		FrequencyCorrection: config.Radio.FrequencyCorrection,
		Gain:                config.Radio.Gain,
	}, rtlsdr.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating signal source: %w", err)
	}

	// From here on the loop owns the source and closes it on exit.

	csvWriter, err := record.NewCSVWriter(config.Output.CSVPath, confirmOverwrite(os.Stdin, os.Stderr))
	if err != nil {
		_ = source.Close()
		return fmt.Errorf("opening output: %w", err)
	}
	defer func() {
		if cErr := csvWriter.Close(); cErr != nil {
			logger.Warn("closing output", slog.String("error", cErr.Error()))
		}
	}()

	sinks := []collector.Sink{csvWriter}

	if config.Output.Database.Enabled {
		store := storage.New(config.Output.Database.Path)
		defer func() {
			if cErr := store.Close(); cErr != nil {
				logger.Warn("closing database", slog.String("error", cErr.Error()))
			}
		}()

		sessionID, err := store.CreateSession(rtlsdr.Device, config.Radio)
		if err != nil {
			_ = source.Close()
			return fmt.Errorf("creating database session: %w", err)
		}
		logger.Info("mirroring records to database",
			slog.String("path", config.Output.Database.Path),
			slog.Int64("session", sessionID))

		sinks = append(sinks, &storeSink{store: store, sessionID: sessionID})
	}

	options := []func(*collector.Loop){
		collector.WithLogger(logger),
		collector.WithSinks(sinks...),
	}

	if receiver := openPositioning(ctx, &config.GPS, logger); receiver != nil {
		defer func() {
			if cErr := receiver.Close(); cErr != nil {
				logger.Warn("closing positioning device", slog.String("error", cErr.Error()))
			}
		}()
		options = append(options, collector.WithFixProvider(receiver))
	}

	announceEvery := 0
	if config.Sampling.Announce.Enabled {
		announceEvery = config.Sampling.Announce.Every
		options = append(options, collector.WithSpeaker(announce.New(announce.WithLogger(logger))))
	}

	loop, err := collector.New(collector.Config{
		SampleRate:    float64(config.Radio.SampleRate),
		BlockSize:     config.Radio.BlockSize,
		OffsetDB:      config.Radio.AntennaOffsetDB,
		Interval:      time.Duration(config.Sampling.Interval),
		AnnounceEvery: announceEvery,
		Window:        window,
	}, source, sc, options...)
	if err != nil {
		_ = source.Close()
		return err
	}

	logger.Info("collecting",
		slog.Int64("frequency", config.Radio.ListeningFrequency),
		slog.String("output", config.Output.CSVPath))

	return loop.Run(ctx)
}

// buildScale resolves the classification scale, honoring an explicit
// override before falling back to frequency-based selection.
func buildScale(config *RadioConfig) (*scale.Scale, error) {
	switch config.Scale {
	case "hf":
		return scale.HF(), nil
	case "vhf":
		return scale.VHF(), nil
	case "":
		return scale.ForFrequency(float64(config.ListeningFrequency)), nil
	default:
		return nil, fmt.Errorf("unknown scale override '%s'", config.Scale)
	}
}

// openPositioning selects and opens the positioning device, then waits
// for it to produce a valid fix. Any failure disables positioning for
// the run instead of aborting it: records are still worth collecting,
// just without coordinates.
func openPositioning(ctx context.Context, config *GPSConfig, logger *slog.Logger) *gps.Receiver {
	if !config.Enabled {
		return nil
	}

	port := config.Port
	if port == "" {
		var err error
		port, err = gps.SelectPort(choosePort(os.Stdin, os.Stderr))
		if err != nil {
			logger.Warn("positioning disabled", slog.String("error", err.Error()))
			return nil
		}
	}

	receiver, err := gps.Open(port, config.BaudRate, gps.WithLogger(logger))
	if err != nil {
		logger.Warn("positioning disabled", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("waiting for a valid fix",
		slog.String("port", receiver.Port()),
		slog.Duration("timeout", time.Duration(config.PollTimeout)))

	if err = receiver.WaitForFix(ctx, time.Duration(config.PollTimeout)); err != nil {
		if cErr := receiver.Close(); cErr != nil {
			logger.Warn("closing positioning device", slog.String("error", cErr.Error()))
		}
		logger.Warn("positioning disabled", slog.String("error", err.Error()))
		return nil
	}

	return receiver
}

// storeSink mirrors records into a database session, one row per tick.
type storeSink struct {
	store     *storage.Store
	sessionID int64
}

func (s *storeSink) Write(r record.Record) error {
	return s.store.BatchInsertRecords(s.sessionID, []record.Record{r})
}

// confirmOverwrite asks the operator on the terminal whether an existing
// destination may be replaced. Anything but an explicit yes refuses.
func confirmOverwrite(in *os.File, out *os.File) record.ConfirmFunc {
	return func(path string) bool {
		fmt.Fprintf(out, "%s already exists. Overwrite? [y/N] ", path)

		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil {
			return false
		}

		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

// choosePort prompts the operator to pick one of several candidate
// serial ports.
func choosePort(in *os.File, out *os.File) gps.PortChooser {
	return func(ports []string) (string, error) {
		fmt.Fprintln(out, "Several serial ports found:")
		for i, p := range ports {
			fmt.Fprintf(out, "  [%d] %s\n", i, p)
		}
		fmt.Fprint(out, "Which one is the positioning device? ")

		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil {
			return "", err
		}

		i, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil || i < 0 || i >= len(ports) {
			return "", errors.New("invalid port selection")
		}
		return ports[i], nil
	}
}
