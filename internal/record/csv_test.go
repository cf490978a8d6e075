package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCSVWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.csv")

	w, err := NewCSVWriter(path, nil)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	want := []Record{
		positioned(-17.5, 48.1173, 11.5167),
		{
			Timestamp: time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC),
			LevelDB:   -42.25,
			Label:     "S1",
			// no position this tick
		},
	}

	for _, r := range want {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d records, want %d", len(got), len(want))
	}

	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("record %d timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
		if got[i].LevelDB != want[i].LevelDB {
			t.Errorf("record %d level = %v, want %v", i, got[i].LevelDB, want[i].LevelDB)
		}
		if got[i].Label != want[i].Label {
			t.Errorf("record %d label = %q, want %q", i, got[i].Label, want[i].Label)
		}
		if got[i].HasPosition() != want[i].HasPosition() {
			t.Errorf("record %d HasPosition = %v, want %v", i, got[i].HasPosition(), want[i].HasPosition())
		}
		if want[i].HasPosition() && *got[i].Latitude != *want[i].Latitude {
			t.Errorf("record %d latitude = %v, want %v", i, *got[i].Latitude, *want[i].Latitude)
		}
	}
}

func TestCSVWriterRefusesExistingDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.csv")
	if err := os.WriteFile(path, []byte("previous,data\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Default answer is refusal.
	if _, err := NewCSVWriter(path, nil); !errors.Is(err, ErrDestinationExists) {
		t.Errorf("NewCSVWriter over existing file: error = %v, want ErrDestinationExists", err)
	}

	declined := func(string) bool { return false }
	if _, err := NewCSVWriter(path, declined); !errors.Is(err, ErrDestinationExists) {
		t.Errorf("NewCSVWriter with declined confirmation: error = %v, want ErrDestinationExists", err)
	}

	// Original content must be untouched after both refusals.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous,data\n" {
		t.Errorf("destination modified despite refusal: %q", data)
	}
}

func TestCSVWriterConfirmedOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.csv")
	if err := os.WriteFile(path, []byte("previous,data\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var asked string
	confirm := func(p string) bool {
		asked = p
		return true
	}

	w, err := NewCSVWriter(path, confirm)
	if err != nil {
		t.Fatalf("NewCSVWriter with confirmation: %v", err)
	}
	defer w.Close()

	if asked != path {
		t.Errorf("confirmation asked for %q, want %q", asked, path)
	}

	records, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV after overwrite: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("fresh destination has %d records, want 0", len(records))
	}
}

func TestReadCSVRejectsWrongHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	if err := os.WriteFile(path, []byte("a,b,c,d,e,f\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadCSV(path); err == nil {
		t.Error("ReadCSV with foreign header succeeded, want error")
	}
}
