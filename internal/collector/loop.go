// Package collector drives the acquisition pipeline: one tick samples
// the radio, reduces the block to a calibrated level, classifies it,
// pairs it with the current position and appends a record, at a fixed
// cadence until the context is cancelled.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/k7rfm/rfmap/internal/announce"
	"github.com/k7rfm/rfmap/internal/dsp"
	"github.com/k7rfm/rfmap/internal/gps"
	"github.com/k7rfm/rfmap/internal/record"
	"github.com/k7rfm/rfmap/internal/scale"
	"github.com/k7rfm/rfmap/internal/sdr"
)

// tickPhase names the stages of one acquisition tick. Errors are
// reported with the phase they occurred in so a failing collaborator is
// immediately identifiable.
type tickPhase int

const (
	phaseSampling tickPhase = iota
	phaseClassifying
	phasePositioning
	phaseEmitting
	phaseAnnouncing
)

func (p tickPhase) String() string {
	switch p {
	case phaseSampling:
		return "sampling"
	case phaseClassifying:
		return "classifying"
	case phasePositioning:
		return "positioning"
	case phaseEmitting:
		return "emitting"
	case phaseAnnouncing:
		return "announcing"
	default:
		return "unknown"
	}
}

// FixProvider yields the next positioning fix. gps.Receiver implements
// it; tests inject canned fixes.
type FixProvider interface {
	NextFix(ctx context.Context) (*gps.Fix, error)
}

// Sink receives one record per accepted tick.
type Sink interface {
	Write(r record.Record) error
}

// Config holds the per-run acquisition parameters. It is immutable
// once the loop starts.
type Config struct {
	SampleRate    float64       // Hz, matches the source configuration
	BlockSize     int           // samples per tick
	OffsetDB      float64       // antenna/system gain correction
	Interval      time.Duration // sleep between ticks
	AnnounceEvery int           // announce every N ticks; 0 disables
	Window        []float64     // optional window vector, nil for rectangular
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("collector: sample rate must be positive: %f", c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("collector: block size must be positive: %d", c.BlockSize)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("collector: sample interval must be positive: %s", c.Interval)
	}
	if c.AnnounceEvery < 0 {
		return fmt.Errorf("collector: announce cadence must not be negative: %d", c.AnnounceEvery)
	}
	return nil
}

// WithLogger sets the logger for the loop.
func WithLogger(logger *slog.Logger) func(*Loop) {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithFixProvider enables positioning. Without it every record carries
// absent position fields.
func WithFixProvider(p FixProvider) func(*Loop) {
	return func(l *Loop) {
		l.fixes = p
	}
}

// WithSpeaker sets the announcer invoked on the announcement cadence.
func WithSpeaker(s announce.Speaker) func(*Loop) {
	return func(l *Loop) {
		l.speaker = s
	}
}

// WithSinks sets the record destinations.
func WithSinks(sinks ...Sink) func(*Loop) {
	return func(l *Loop) {
		l.sinks = sinks
	}
}

// position is the last trustworthy fix, carried forward across ticks
// that yield no usable fix.
type position struct {
	latitude  float64
	longitude float64
	elevation float64
}

// Loop runs the acquisition pipeline. Single-threaded by design: one
// tick fully completes before the next begins, so no locking is needed
// around the tick counter or the carried position.
type Loop struct {
	cfg       Config
	source    sdr.Source
	scale     *scale.Scale
	estimator *dsp.Estimator

	fixes   FixProvider
	speaker announce.Speaker
	sinks   []Sink
	logger  *slog.Logger

	tick    uint64
	lastPos *position
}

// New creates an acquisition loop over the given sample source and
// classification scale.
func New(cfg Config, source sdr.Source, sc *scale.Scale, options ...func(*Loop)) (*Loop, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.New("collector: no sample source")
	}
	if sc == nil {
		return nil, errors.New("collector: no classification scale")
	}

	estimator, err := dsp.NewEstimator(cfg.BlockSize)
	if err != nil {
		return nil, err
	}

	l := Loop{
		cfg:       cfg,
		source:    source,
		scale:     sc,
		estimator: estimator,
		speaker:   announce.Noop{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&l)
	}

	return &l, nil
}

// Run executes ticks until the context is cancelled or the sample
// source fails. The source is closed on every exit path.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.source.Close(); err != nil {
			l.logger.Warn("closing sample source", slog.String("error", err.Error()))
		}
	}()

	l.logger.Info("starting acquisition",
		slog.Duration("interval", l.cfg.Interval),
		slog.Int("blockSize", l.cfg.BlockSize),
		slog.Bool("positioning", l.fixes != nil))

	for {
		if err := l.runTick(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				l.logger.Info("acquisition stopped", slog.Uint64("ticks", l.tick))
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			l.logger.Info("acquisition stopped", slog.Uint64("ticks", l.tick))
			return nil
		case <-time.After(l.cfg.Interval):
		}
	}
}

// runTick advances the loop through one full tick: sampling,
// classifying, positioning, emitting, announcing.
func (l *Loop) runTick(ctx context.Context) error {
	samples, err := l.source.ReadBlock(ctx, l.estimator.BlockSize())
	if err != nil {
		return phaseError(phaseSampling, err)
	}

	level, label, err := l.classify(samples)
	if err != nil {
		return phaseError(phaseClassifying, err)
	}

	if l.fixes != nil {
		l.updatePosition(ctx)
	}

	rec := record.Record{
		Timestamp: time.Now().UTC(),
		LevelDB:   level,
		Label:     label,
	}
	if l.lastPos != nil {
		lat, lng, elev := l.lastPos.latitude, l.lastPos.longitude, l.lastPos.elevation
		rec.Latitude, rec.Longitude, rec.Elevation = &lat, &lng, &elev
	}

	l.emit(rec)

	l.tick++ // wraps eventually; only gates the cadence check below
	if l.cfg.AnnounceEvery > 0 && l.tick%uint64(l.cfg.AnnounceEvery) == 0 {
		l.speaker.Speak(label)
	}

	l.logger.Debug("tick complete",
		slog.Uint64("tick", l.tick),
		slog.Float64("levelDB", level),
		slog.String("label", label))

	return nil
}

// classify reduces a sample block to a calibrated level and its scale
// label. A level outside every interval classifies as unknown instead
// of failing the tick.
func (l *Loop) classify(samples []complex128) (float64, string, error) {
	var opts []dsp.Option
	if l.cfg.Window != nil {
		opts = append(opts, dsp.WithWindow(l.cfg.Window))
	}

	level, err := l.estimator.PeakLevel(samples, l.cfg.SampleRate, l.cfg.OffsetDB, opts...)
	if err != nil {
		return 0, "", err
	}

	label, ok := l.scale.Classify(level)
	if !ok {
		label = scale.Unknown
	}
	return level, label, nil
}

// updatePosition reads the next fix and, when it is trustworthy,
// replaces the carried position. A missing, malformed or rejected fix
// leaves the previous position in place; coordinates are never
// fabricated.
func (l *Loop) updatePosition(ctx context.Context) {
	fix, err := l.fixes.NextFix(ctx)
	if err != nil {
		l.logger.Debug("no usable fix this tick", slog.String("error", err.Error()))
		return
	}
	if !fix.Valid() {
		l.logger.Debug("fix rejected",
			slog.String("quality", fix.Quality.String()),
			slog.Int("satellites", fix.Satellites),
			slog.Float64("hdop", fix.HDOP))
		return
	}

	l.lastPos = &position{
		latitude:  fix.Latitude,
		longitude: fix.Longitude,
		elevation: fix.Altitude,
	}
}

// emit writes the record to every sink. A sink failure is logged and
// does not interrupt the cadence; the remaining sinks still receive
// the record.
func (l *Loop) emit(rec record.Record) {
	for _, sink := range l.sinks {
		if err := sink.Write(rec); err != nil {
			l.logger.Error("writing record", slog.String("phase", phaseEmitting.String()), slog.String("error", err.Error()))
		}
	}
}

func phaseError(p tickPhase, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("collector: %s: %w", p, err)
}
