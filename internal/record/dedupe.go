package record

import (
	"fmt"
	"math"
	"sort"
)

// binKey identifies a spatial grid cell. Integer indices avoid float
// jitter in map keys; the cell corner is recovered as index*step.
type binKey struct {
	lat int64
	lng int64
}

// binIndex floors v onto the grid. Quotients within rounding error of
// an integer snap to it, so a record already sitting on a bin corner
// re-bins to its own cell and repeated dedupe passes are stable.
func binIndex(v, step float64) int64 {
	q := v / step
	if r := math.Round(q); math.Abs(q-r) < 1e-9 {
		return int64(r)
	}
	return int64(math.Floor(q))
}

// Dedupe collapses records sharing a spatial bin into one representative
// per bin: the record with the strongest level, reported at the bin's
// floored corner coordinates. Strongest rather than average so a hot
// spot is never diluted by the quiet samples around it. Records without
// a position cannot be binned and are dropped.
//
// The result is sorted by bin coordinates, never larger than the input,
// and stable under repeated application.
func Dedupe(records []Record, binStep float64) ([]Record, error) {
	if binStep <= 0 {
		return nil, fmt.Errorf("record: bin step must be positive: %f", binStep)
	}

	bins := make(map[binKey]Record)
	for _, r := range records {
		if !r.HasPosition() {
			continue
		}

		key := binKey{
			lat: binIndex(*r.Latitude, binStep),
			lng: binIndex(*r.Longitude, binStep),
		}

		best, ok := bins[key]
		if !ok || r.LevelDB > best.LevelDB {
			lat := float64(key.lat) * binStep
			lng := float64(key.lng) * binStep

			r.Latitude = &lat
			r.Longitude = &lng
			bins[key] = r
		}
	}

	out := make([]Record, 0, len(bins))
	for _, r := range bins {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if *out[i].Latitude != *out[j].Latitude {
			return *out[i].Latitude < *out[j].Latitude
		}
		return *out[i].Longitude < *out[j].Longitude
	})

	return out, nil
}
