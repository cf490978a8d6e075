package dsp

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

// sinusoid generates a unit complex exponential at the given frequency.
func sinusoid(n int, freq, sampleRate float64) []complex128 {
	samples := make([]complex128, n)
	for i := range samples {
		t := float64(i) / sampleRate
		samples[i] = cmplx.Exp(complex(0, 2*math.Pi*freq*t))
	}
	return samples
}

func TestEstimatePureTonePeak(t *testing.T) {
	const (
		n          = 1024
		sampleRate = 1024.0
		toneFreq   = 100.0
	)

	est, err := NewEstimator(n)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	if est.BlockSize() != n {
		t.Fatalf("BlockSize = %d, want %d", est.BlockSize(), n)
	}

	spec, err := est.Estimate(sinusoid(n, toneFreq, sampleRate), sampleRate)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if got, want := len(spec.PowerDB), n/2+1; got != want {
		t.Fatalf("spectrum length = %d, want %d", got, want)
	}
	if len(spec.Frequencies) != len(spec.PowerDB) {
		t.Fatalf("frequency axis length %d != power length %d", len(spec.Frequencies), len(spec.PowerDB))
	}

	binHz := sampleRate / n
	peakFreq, peakDB := spec.Peak()
	if math.Abs(peakFreq-toneFreq) > binHz {
		t.Errorf("peak at %.2f Hz, want %.2f Hz within one bin (%.2f Hz)", peakFreq, toneFreq, binHz)
	}

	// A unit tone at an exact bin scales to magnitude 2 under the
	// one-sided convention: 20*log10(2), about 6.02 dB.
	wantDB := 20 * math.Log10(2)
	if math.Abs(peakDB-wantDB) > 0.1 {
		t.Errorf("peak power = %.3f dB, want %.3f dB", peakDB, wantDB)
	}
}

func TestPeakLevelAppliesOffset(t *testing.T) {
	const (
		n          = 1024
		sampleRate = 1024.0
		offset     = 3.5
	)

	est, err := NewEstimator(n)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}

	samples := sinusoid(n, 100, sampleRate)
	spec, err := est.Estimate(samples, sampleRate)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	_, peak := spec.Peak()

	level, err := est.PeakLevel(samples, sampleRate, offset)
	if err != nil {
		t.Fatalf("PeakLevel: %v", err)
	}
	if math.Abs(level-(peak-offset)) > 1e-9 {
		t.Errorf("PeakLevel = %.3f, want peak-offset = %.3f", level, peak-offset)
	}
}

func TestEstimateZeroBlockClampsToFloor(t *testing.T) {
	const n = 1024

	est, err := NewEstimator(n)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}

	level, err := est.PeakLevel(make([]complex128, n), 2.048e6, 0)
	if err != nil {
		t.Fatalf("PeakLevel: %v", err)
	}

	if math.IsNaN(level) || math.IsInf(level, 0) {
		t.Fatalf("PeakLevel of silence = %v, want a representable value", level)
	}
	if level != FloorDB {
		t.Errorf("PeakLevel of silence = %v, want clamp to %v", level, FloorDB)
	}
}

func TestEstimateWindowLengthMismatch(t *testing.T) {
	est, err := NewEstimator(64)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}

	_, err = est.Estimate(make([]complex128, 64), 1024, WithWindow(make([]float64, 32)))
	if !errors.Is(err, ErrWindowLength) {
		t.Errorf("Estimate with short window: error = %v, want ErrWindowLength", err)
	}
}

func TestEstimateWindowedTone(t *testing.T) {
	const (
		n          = 1024
		sampleRate = 1024.0
		toneFreq   = 200.0
	)

	est, err := NewEstimator(n)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}

	w, err := NewWindow(WindowHann, n)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if w == nil {
		t.Fatal("NewWindow(hann) returned nil vector")
	}

	spec, err := est.Estimate(sinusoid(n, toneFreq, sampleRate), sampleRate, WithWindow(w))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	binHz := sampleRate / n
	peakFreq, peakDB := spec.Peak()
	if math.Abs(peakFreq-toneFreq) > binHz {
		t.Errorf("windowed peak at %.2f Hz, want %.2f Hz", peakFreq, toneFreq)
	}

	// Window energy normalization keeps the tone near 0 dBFS +6 dB even
	// though the Hann window halves the coherent gain.
	wantDB := 20 * math.Log10(2)
	if math.Abs(peakDB-wantDB) > 0.2 {
		t.Errorf("windowed peak power = %.3f dB, want about %.3f dB", peakDB, wantDB)
	}
}

func TestNewWindow(t *testing.T) {
	if w, err := NewWindow(WindowRectangle, 16); err != nil || w != nil {
		t.Errorf("NewWindow(rectangle) = %v, %v; want nil vector and nil error", w, err)
	}
	if _, err := NewWindow("flat-top", 16); err == nil {
		t.Error("NewWindow(flat-top) succeeded, want error for unknown window")
	}
	if _, err := NewWindow(WindowHann, 0); err == nil {
		t.Error("NewWindow with zero length succeeded, want error")
	}
}

func TestNewEstimatorRejectsBadSize(t *testing.T) {
	if _, err := NewEstimator(0); err == nil {
		t.Error("NewEstimator(0) succeeded, want error")
	}
}
