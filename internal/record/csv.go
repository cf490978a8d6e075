package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Columns is the fixed CSV column order shared by the writer, the
// reader and the map renderer.
var Columns = []string{"timestamp", "level_db", "s_unit", "latitude", "longitude", "elevation"}

// ErrDestinationExists is returned when the output file already exists
// and the operator did not confirm overwriting it.
var ErrDestinationExists = errors.New("record: destination exists and overwrite was not confirmed")

// ConfirmFunc asks the operator whether an existing destination may be
// overwritten. Returning false (the default answer) refuses.
type ConfirmFunc func(path string) bool

// CSVWriter appends records to a CSV destination, one row per tick.
// The header row is written once when the destination is established.
type CSVWriter struct {
	f *os.File
	w *csv.Writer
}

// NewCSVWriter opens the destination for appending. A pre-existing
// non-empty destination is only replaced after explicit confirmation;
// with no confirmation available the writer refuses rather than lose
// data.
func NewCSVWriter(path string, confirm ConfirmFunc) (*CSVWriter, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() > 0:
		if confirm == nil || !confirm(path) {
			return nil, fmt.Errorf("%w: %s", ErrDestinationExists, path)
		}

	case err != nil && !os.IsNotExist(err):
		return nil, fmt.Errorf("record: checking destination %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("record: opening destination %s: %w", path, err)
	}

	w := &CSVWriter{f: f, w: csv.NewWriter(f)}
	if err = w.w.Write(Columns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("record: writing header: %w", err)
	}

	w.w.Flush()
	if err = w.w.Error(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("record: flushing header: %w", err)
	}

	return w, nil
}

// Write appends one record and flushes it so rows survive an abrupt
// process termination.
func (w *CSVWriter) Write(r Record) error {
	row := []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		strconv.FormatFloat(r.LevelDB, 'f', -1, 64),
		r.Label,
		formatOptional(r.Latitude),
		formatOptional(r.Longitude),
		formatOptional(r.Elevation),
	}

	if err := w.w.Write(row); err != nil {
		return fmt.Errorf("record: writing row: %w", err)
	}

	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("record: flushing row: %w", err)
	}
	return nil
}

// Close flushes pending rows and closes the destination.
func (w *CSVWriter) Close() error {
	w.w.Flush()

	var errs []error
	if err := w.w.Error(); err != nil {
		errs = append(errs, err)
	}
	if err := w.f.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ReadCSV loads an accumulated record set written by CSVWriter.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("record: reading header of %s: %w", path, err)
	}
	for i, col := range Columns {
		if header[i] != col {
			return nil, fmt.Errorf("record: %s column %d is %q, want %q", path, i, header[i], col)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record: reading %s: %w", path, err)
		}

		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("record: %s line %d: %w", path, line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseRow(row []string) (Record, error) {
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return Record{}, fmt.Errorf("parsing timestamp %q: %w", row[0], err)
	}

	level, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parsing level %q: %w", row[1], err)
	}

	rec := Record{Timestamp: ts, LevelDB: level, Label: row[2]}

	if rec.Latitude, err = parseOptional(row[3]); err != nil {
		return Record{}, fmt.Errorf("parsing latitude %q: %w", row[3], err)
	}
	if rec.Longitude, err = parseOptional(row[4]); err != nil {
		return Record{}, fmt.Errorf("parsing longitude %q: %w", row[4], err)
	}
	if rec.Elevation, err = parseOptional(row[5]); err != nil {
		return Record{}, fmt.Errorf("parsing elevation %q: %w", row[5], err)
	}

	return rec, nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
