// Package dsp reduces blocks of complex baseband samples to calibrated
// power levels. It computes a one-sided power spectrum in dB relative
// to full scale and extracts a single scalar level per block.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FloorDB is the clamp applied to zero-magnitude bins so a silent block
// produces a representable level instead of -Inf leaking into records.
const FloorDB = -200.0

// ErrWindowLength is returned when a supplied window vector does not
// match the sample block length.
var ErrWindowLength = errors.New("dsp: window length does not match block length")

// Spectrum is a one-sided power spectrum. Frequencies and PowerDB are
// always the same length, floor(N/2)+1 for an N-sample block.
type Spectrum struct {
	Frequencies []float64 // bin center frequencies in Hz
	PowerDB     []float64 // power in dBFS, clamped at FloorDB
}

// Peak returns the frequency and power of the strongest bin.
func (s *Spectrum) Peak() (freq, powerDB float64) {
	powerDB = math.Inf(-1)
	for i, p := range s.PowerDB {
		if p > powerDB {
			powerDB = p
			freq = s.Frequencies[i]
		}
	}
	return freq, powerDB
}

type options struct {
	window    []float64
	reference float64
}

// Option configures a spectrum estimate.
type Option func(*options)

// WithWindow supplies a window vector applied elementwise before the
// transform. It must be exactly the block length. The default is
// rectangular (unity gain, no tapering).
func WithWindow(w []float64) Option {
	return func(o *options) {
		o.window = w
	}
}

// WithReference sets the reference magnitude for the dB conversion.
// The default reference is 1 (full scale).
func WithReference(ref float64) Option {
	return func(o *options) {
		o.reference = ref
	}
}

// Estimator computes power spectra for fixed-length sample blocks.
// It owns a reusable FFT plan and scratch buffers, so it runs once per
// acquisition tick without reallocating. Not safe for concurrent use.
type Estimator struct {
	n       int
	fft     *fourier.CmplxFFT
	scratch []complex128
}

// NewEstimator creates an estimator for blocks of blockSize samples.
func NewEstimator(blockSize int) (*Estimator, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("dsp: block size must be positive: %d", blockSize)
	}
	return &Estimator{
		n:       blockSize,
		fft:     fourier.NewCmplxFFT(blockSize),
		scratch: make([]complex128, blockSize),
	}, nil
}

// BlockSize returns the sample block length the estimator was built for.
func (e *Estimator) BlockSize() int {
	return e.n
}

// Estimate computes the one-sided power spectrum of one sample block.
// The block length must match the estimator's block size, and a window
// supplied via WithWindow must match it too.
func (e *Estimator) Estimate(samples []complex128, sampleRate float64, opts ...Option) (*Spectrum, error) {
	if len(samples) != e.n {
		return nil, fmt.Errorf("dsp: block length %d does not match estimator size %d", len(samples), e.n)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("dsp: sample rate must be positive: %f", sampleRate)
	}

	o := options{reference: 1}
	for _, opt := range opts {
		opt(&o)
	}

	windowSum := float64(e.n)
	if o.window != nil {
		if len(o.window) != e.n {
			return nil, fmt.Errorf("%w: %d != %d", ErrWindowLength, len(o.window), e.n)
		}
		windowSum = 0
		for i, w := range o.window {
			e.scratch[i] = samples[i] * complex(w, 0)
			windowSum += w
		}
	} else {
		copy(e.scratch, samples)
	}

	coeffs := e.fft.Coefficients(nil, e.scratch)

	// One-sided convention: keep bins 0..N/2 and normalize magnitudes
	// by 2/sum(window) to preserve window energy.
	bins := e.n/2 + 1
	norm := 2 / windowSum

	spec := Spectrum{
		Frequencies: make([]float64, bins),
		PowerDB:     make([]float64, bins),
	}
	binHz := sampleRate / float64(e.n)
	for k := 0; k < bins; k++ {
		spec.Frequencies[k] = float64(k) * binHz

		mag := cmplx.Abs(coeffs[k]) * norm
		spec.PowerDB[k] = toDB(mag, o.reference)
	}

	return &spec, nil
}

// PeakLevel reduces one sample block to a single calibrated level: the
// maximum spectrum bin minus the antenna offset. Taking the peak rather
// than the bin at the tuned frequency is an approximation: the tuned
// signal is expected to dominate the observed band.
func (e *Estimator) PeakLevel(samples []complex128, sampleRate, offsetDB float64, opts ...Option) (float64, error) {
	spec, err := e.Estimate(samples, sampleRate, opts...)
	if err != nil {
		return 0, err
	}

	_, peak := spec.Peak()
	return peak - offsetDB, nil
}

// toDB converts a magnitude to decibels relative to ref, clamping
// unrepresentable values to FloorDB.
func toDB(mag, ref float64) float64 {
	if mag <= 0 || ref <= 0 {
		return FloorDB
	}
	db := 20 * math.Log10(mag/ref)
	if db < FloorDB || math.IsNaN(db) {
		return FloorDB
	}
	return db
}
