package gps

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// sentenceGGA identifies the fix sentence we decode. Other talker
// prefixes (GN, GL) are left to the caller's candidate filter.
const sentenceGGA = "GPGGA"

// ErrNoFix is returned when a GGA sentence parses cleanly but reports
// fix quality zero. It is not a decode failure; the receiver simply has
// no position yet.
var ErrNoFix = errors.New("gps: receiver reports no fix")

// IsCandidate reports whether a raw serial line looks like a GGA
// sentence worth decoding. Callers scanning a mixed NMEA stream use it
// to skip talker sentences of other types.
func IsCandidate(line string) bool {
	return strings.Contains(line, sentenceGGA)
}

// DecodeGGA decodes one GGA sentence into a Fix. The caller is expected
// to hand it candidate lines only (see IsCandidate); the decoder does
// not scan forward. A quality field of zero yields ErrNoFix, malformed
// fields yield a parse error, and the line's checksum is not verified
// (the field layout has been stable for decades and a corrupted line
// fails numeric parsing anyway).
func DecodeGGA(line string) (*Fix, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 10 {
		return nil, fmt.Errorf("gps: GGA sentence has %d fields, want at least 10", len(fields))
	}

	quality, err := strconv.Atoi(fields[6])
	if err != nil {
		return nil, fmt.Errorf("gps: parsing fix quality %q: %w", fields[6], err)
	}
	if FixQuality(quality) == QualityInvalid {
		return nil, ErrNoFix
	}

	satellites, err := strconv.Atoi(fields[7])
	if err != nil {
		return nil, fmt.Errorf("gps: parsing satellite count %q: %w", fields[7], err)
	}

	hdop, err := strconv.ParseFloat(fields[8], 64)
	if err != nil {
		return nil, fmt.Errorf("gps: parsing HDOP %q: %w", fields[8], err)
	}

	altitude, err := strconv.ParseFloat(fields[9], 64)
	if err != nil {
		return nil, fmt.Errorf("gps: parsing altitude %q: %w", fields[9], err)
	}

	latitude, err := parseCoordinate(fields[2], 2)
	if err != nil {
		return nil, fmt.Errorf("gps: parsing latitude: %w", err)
	}
	if fields[3] == "S" {
		latitude = -latitude
	}

	longitude, err := parseCoordinate(fields[4], 3)
	if err != nil {
		return nil, fmt.Errorf("gps: parsing longitude: %w", err)
	}
	if fields[5] == "W" {
		longitude = -longitude
	}

	return &Fix{
		Timestamp:  fields[1],
		Latitude:   latitude,
		Longitude:  longitude,
		Quality:    FixQuality(quality),
		Satellites: satellites,
		HDOP:       hdop,
		Altitude:   altitude,
	}, nil
}

// parseCoordinate converts an NMEA degrees/minutes field ("DDMM.MMMM"
// for latitude, "DDDMM.MMMMM" for longitude) to decimal degrees.
// degDigits is the length of the integer-degree prefix.
func parseCoordinate(field string, degDigits int) (float64, error) {
	if len(field) <= degDigits {
		return 0, fmt.Errorf("coordinate field %q too short", field)
	}

	degrees, err := strconv.ParseFloat(field[:degDigits], 64)
	if err != nil {
		return 0, fmt.Errorf("degrees of %q: %w", field, err)
	}

	minutes, err := strconv.ParseFloat(field[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("minutes of %q: %w", field, err)
	}

	return degrees + minutes/60, nil
}
