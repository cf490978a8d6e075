package record

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func ptr(v float64) *float64 { return &v }

func positioned(level, lat, lng float64) Record {
	return Record{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		LevelDB:   level,
		Label:     "S5",
		Latitude:  ptr(lat),
		Longitude: ptr(lng),
		Elevation: ptr(12),
	}
}

func TestDedupeKeepsMaxLevelPerBin(t *testing.T) {
	records := []Record{
		positioned(-20, 48.11731, 11.51670),
		positioned(-5, 48.11735, 11.51672), // same 0.001° bin, stronger
		positioned(-30, 48.11738, 11.51677),
		positioned(-40, 48.20001, 11.51670), // different bin
	}

	out, err := Dedupe(records, 0.001)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}

	// First bin (sorted by latitude) is the 48.117 cell.
	if out[0].LevelDB != -5 {
		t.Errorf("bin level = %v, want the maximum -5", out[0].LevelDB)
	}
	if math.Abs(*out[0].Latitude-48.117) > 1e-9 || math.Abs(*out[0].Longitude-11.516) > 1e-9 {
		t.Errorf("bin coordinates = (%v, %v), want floored (48.117, 11.516)", *out[0].Latitude, *out[0].Longitude)
	}
}

func TestDedupeNeverGrows(t *testing.T) {
	records := []Record{
		positioned(-20, 48.1, 11.5),
		positioned(-21, 48.2, 11.5),
		positioned(-22, 48.3, 11.5),
	}

	out, err := Dedupe(records, 0.01)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	if len(out) > len(records) {
		t.Errorf("dedupe grew the record set: %d > %d", len(out), len(records))
	}
	// All distinct bins: count preserved.
	if len(out) != len(records) {
		t.Errorf("distinct bins collapsed: got %d, want %d", len(out), len(records))
	}
}

func TestDedupeIdempotent(t *testing.T) {
	records := []Record{
		positioned(-20, 48.11731, 11.51670),
		positioned(-5, 48.11735, 11.51672),
		positioned(-30, 48.20001, 11.51677),
		positioned(-8, -33.86881, 151.20931),
		positioned(-9, -33.86884, 151.20934),
	}

	once, err := Dedupe(records, 0.001)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	twice, err := Dedupe(once, 0.001)
	if err != nil {
		t.Fatalf("Dedupe (second pass): %v", err)
	}

	if !reflect.DeepEqual(dropPointers(once), dropPointers(twice)) {
		t.Errorf("dedupe is not idempotent:\nonce:  %v\ntwice: %v", dropPointers(once), dropPointers(twice))
	}
}

// dropPointers flattens records for comparison since pointer identity
// differs between passes.
func dropPointers(records []Record) [][4]float64 {
	out := make([][4]float64, len(records))
	for i, r := range records {
		out[i] = [4]float64{r.LevelDB, *r.Latitude, *r.Longitude, *r.Elevation}
	}
	return out
}

func TestDedupeDropsPositionless(t *testing.T) {
	records := []Record{
		positioned(-20, 48.1, 11.5),
		{Timestamp: time.Now(), LevelDB: -10, Label: "S7"}, // no position
	}

	out, err := Dedupe(records, 0.001)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("got %d records, want 1 (positionless dropped)", len(out))
	}
}

func TestDedupeRejectsBadStep(t *testing.T) {
	if _, err := Dedupe(nil, 0); err == nil {
		t.Error("Dedupe with zero step succeeded, want error")
	}
	if _, err := Dedupe(nil, -0.1); err == nil {
		t.Error("Dedupe with negative step succeeded, want error")
	}
}
