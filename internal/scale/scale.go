// Package scale maps calibrated decibel levels onto an ordered set of
// labelled intervals, the way amateur radio operators report signal
// strength in S-units.
package scale

import (
	"fmt"
)

// Interval is a half-open numeric range (Start, End] tagged with a label.
// The lower bound is excluded and the upper bound included so that
// adjacent intervals tile without double-counting the boundary.
type Interval struct {
	Label string
	Start float64
	End   float64
}

// Contains reports whether v falls inside the interval.
func (i Interval) Contains(v float64) bool {
	return v > i.Start && v <= i.End
}

// Scale is an ordered, immutable collection of disjoint intervals.
// It is safe for concurrent readers once constructed.
type Scale struct {
	intervals []Interval
}

// New builds a Scale from the given intervals in insertion order.
// It returns an error if any interval is degenerate or if two intervals
// overlap anywhere other than a shared boundary point.
func New(intervals []Interval) (*Scale, error) {
	if len(intervals) == 0 {
		return nil, fmt.Errorf("scale: no intervals given")
	}

	for i, iv := range intervals {
		if iv.End <= iv.Start {
			return nil, fmt.Errorf("scale: interval %q has end %.2f <= start %.2f", iv.Label, iv.End, iv.Start)
		}

		for _, other := range intervals[i+1:] {
			if iv.Start < other.End && other.Start < iv.End {
				return nil, fmt.Errorf("scale: intervals %q and %q overlap", iv.Label, other.Label)
			}
		}
	}

	s := Scale{intervals: make([]Interval, len(intervals))}
	copy(s.intervals, intervals)
	return &s, nil
}

// Classify returns the label of the first interval containing v.
// ok is false when no interval covers v; callers should treat that as
// an explicit "unknown" rather than an error.
func (s *Scale) Classify(v float64) (label string, ok bool) {
	for _, iv := range s.intervals {
		if iv.Contains(v) {
			return iv.Label, true
		}
	}
	return "", false
}

// Len returns the number of intervals in the scale.
func (s *Scale) Len() int {
	return len(s.intervals)
}
