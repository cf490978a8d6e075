package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/window"
)

const (
	WindowRectangle = "rectangle"
	WindowHann      = "hann"
	WindowHamming   = "hamming"
	WindowBlackman  = "blackman"
)

// NewWindow returns a window vector of length n for the named function,
// or nil for the rectangular window (no tapering). Window shapes come
// from gonum; the vector is meant to be passed to WithWindow.
func NewWindow(name string, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dsp: window length must be positive: %d", n)
	}

	if name == "" || name == WindowRectangle {
		return nil, nil
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}

	switch name {
	case WindowHann:
		return window.Hann(w), nil
	case WindowHamming:
		return window.Hamming(w), nil
	case WindowBlackman:
		return window.Blackman(w), nil
	default:
		return nil, fmt.Errorf("dsp: unknown window function: %s", name)
	}
}
