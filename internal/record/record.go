// Package record defines the accumulated survey sample: one calibrated,
// classified signal level paired with the position it was measured at.
// It also provides the append-only CSV sink and the spatial deduplicator
// used to shrink a record set before rendering.
package record

import (
	"time"
)

// Record is one acquisition tick's output row. Position fields are nil
// when no trustworthy fix was available; a rejected fix never populates
// them.
type Record struct {
	Timestamp time.Time
	LevelDB   float64 // calibrated level after antenna offset
	Label     string  // S-unit classification
	Latitude  *float64
	Longitude *float64
	Elevation *float64
}

// HasPosition reports whether the record carries usable coordinates.
func (r *Record) HasPosition() bool {
	return r.Latitude != nil && r.Longitude != nil
}
