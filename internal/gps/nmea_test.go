package gps

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
)

const sampleGGA = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"

func TestDecodeGGA(t *testing.T) {
	fix, err := DecodeGGA(sampleGGA)
	if err != nil {
		t.Fatalf("DecodeGGA: %v", err)
	}

	if fix.Timestamp != "123519" {
		t.Errorf("Timestamp = %q, want %q", fix.Timestamp, "123519")
	}
	if math.Abs(fix.Latitude-48.1173) > 1e-4 {
		t.Errorf("Latitude = %.6f, want 48.1173", fix.Latitude)
	}
	if math.Abs(fix.Longitude-11.5167) > 1e-4 {
		t.Errorf("Longitude = %.6f, want 11.5167", fix.Longitude)
	}
	if fix.Quality != QualityGPS {
		t.Errorf("Quality = %v, want %v", fix.Quality, QualityGPS)
	}
	if fix.Satellites != 8 {
		t.Errorf("Satellites = %d, want 8", fix.Satellites)
	}
	if fix.HDOP != 0.9 {
		t.Errorf("HDOP = %v, want 0.9", fix.HDOP)
	}
	if fix.Altitude != 545.4 {
		t.Errorf("Altitude = %v, want 545.4", fix.Altitude)
	}
	if !fix.Valid() {
		t.Error("fix should be valid")
	}
}

func TestDecodeGGAHemispheres(t *testing.T) {
	line := "$GPGGA,021044,3356.462,S,15112.215,W,1,06,1.2,18.9,M,,M,,*4B"

	fix, err := DecodeGGA(line)
	if err != nil {
		t.Fatalf("DecodeGGA: %v", err)
	}
	if fix.Latitude >= 0 {
		t.Errorf("southern latitude = %v, want negative", fix.Latitude)
	}
	if fix.Longitude >= 0 {
		t.Errorf("western longitude = %v, want negative", fix.Longitude)
	}
	if math.Abs(fix.Latitude+33.9410) > 1e-3 {
		t.Errorf("Latitude = %.6f, want about -33.9410", fix.Latitude)
	}
	if math.Abs(fix.Longitude+151.2036) > 1e-3 {
		t.Errorf("Longitude = %.6f, want about -151.2036", fix.Longitude)
	}
}

// TestDecodeGGARoundTrip encodes known coordinates into NMEA
// degree/minute fields and checks the decoder reproduces them.
func TestDecodeGGARoundTrip(t *testing.T) {
	coords := []struct {
		lat, lng float64
	}{
		{48.1173, 11.5167},
		{37.3861, -122.0839},
		{-33.8688, 151.2093},
		{-0.1807, -78.4678},
	}

	for _, c := range coords {
		line := encodeGGA(c.lat, c.lng)
		fix, err := DecodeGGA(line)
		if err != nil {
			t.Fatalf("DecodeGGA(%q): %v", line, err)
		}
		if math.Abs(fix.Latitude-c.lat) > 1e-4 {
			t.Errorf("latitude round trip: got %.6f, want %.6f", fix.Latitude, c.lat)
		}
		if math.Abs(fix.Longitude-c.lng) > 1e-4 {
			t.Errorf("longitude round trip: got %.6f, want %.6f", fix.Longitude, c.lng)
		}
	}
}

func encodeGGA(lat, lng float64) string {
	latDir, lngDir := "N", "E"
	if lat < 0 {
		lat, latDir = -lat, "S"
	}
	if lng < 0 {
		lng, lngDir = -lng, "W"
	}

	latDeg := math.Floor(lat)
	lngDeg := math.Floor(lng)

	var sb strings.Builder
	sb.WriteString("$GPGGA,123519,")
	sb.WriteString(formatDM(latDeg, (lat-latDeg)*60, 2))
	sb.WriteString("," + latDir + ",")
	sb.WriteString(formatDM(lngDeg, (lng-lngDeg)*60, 3))
	sb.WriteString("," + lngDir + ",1,08,0.9,545.4,M,46.9,M,,*47")
	return sb.String()
}

func formatDM(deg, min float64, degDigits int) string {
	s := strings.Builder{}
	d := int(deg)
	digits := []byte{}
	for i := 0; i < degDigits; i++ {
		digits = append([]byte{byte('0' + d%10)}, digits...)
		d /= 10
	}
	s.Write(digits)

	whole := int(min)
	frac := min - float64(whole)
	s.WriteByte(byte('0' + whole/10))
	s.WriteByte(byte('0' + whole%10))
	s.WriteByte('.')
	for i := 0; i < 5; i++ {
		frac *= 10
		digit := int(frac)
		s.WriteByte(byte('0' + digit))
		frac -= float64(digit)
	}
	return s.String()
}

func TestDecodeGGANoFix(t *testing.T) {
	line := "$GPGGA,123519,,,,,0,00,,,M,,M,,*66"

	_, err := DecodeGGA(line)
	if !errors.Is(err, ErrNoFix) {
		t.Errorf("DecodeGGA with quality 0: error = %v, want ErrNoFix", err)
	}
}

func TestDecodeGGAMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "$GPGGA,123519,4807.038,N"},
		{"non-numeric quality", "$GPGGA,123519,4807.038,N,01131.000,E,x,08,0.9,545.4,M,46.9,M,,*47"},
		{"non-numeric satellites", "$GPGGA,123519,4807.038,N,01131.000,E,1,xx,0.9,545.4,M,46.9,M,,*47"},
		{"non-numeric latitude", "$GPGGA,123519,junk,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"},
		{"latitude too short", "$GPGGA,123519,48,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"},
		{"non-numeric altitude", "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,high,M,46.9,M,,*47"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeGGA(tt.line); err == nil {
				t.Errorf("DecodeGGA(%q) succeeded, want error", tt.line)
			}
		})
	}
}

func TestFixValid(t *testing.T) {
	base := Fix{Quality: QualityGPS, Satellites: 8, HDOP: 0.9}

	tests := []struct {
		name   string
		mutate func(*Fix)
		want   bool
	}{
		{"good fix", func(f *Fix) {}, true},
		{"two satellites", func(f *Fix) { f.Satellites = 2 }, false},
		{"three satellites is enough", func(f *Fix) { f.Satellites = 3 }, true},
		{"HDOP exactly 20 rejected", func(f *Fix) { f.HDOP = 20 }, false},
		{"HDOP just under 20 accepted", func(f *Fix) { f.HDOP = 19.99 }, true},
		{"invalid quality", func(f *Fix) { f.Quality = QualityInvalid }, false},
		{"simulated quality counts", func(f *Fix) { f.Quality = QualitySimulated }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := base
			tt.mutate(&fix)
			if got := fix.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReceiverNextFix(t *testing.T) {
	stream := strings.Join([]string{
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
		"$GPGSV,2,1,08,01,40,083,46,02,17,308,41,12,07,344,39,14,22,228,45*75",
		sampleGGA,
		"",
	}, "\r\n")

	r := NewReceiver(io.NopCloser(strings.NewReader(stream)), "test")
	defer r.Close()

	if r.Port() != "test" {
		t.Errorf("Port() = %q, want %q", r.Port(), "test")
	}

	fix, err := r.NextFix(context.Background())
	if err != nil {
		t.Fatalf("NextFix: %v", err)
	}
	if fix.Satellites != 8 || fix.Quality != QualityGPS {
		t.Errorf("NextFix decoded %+v, want the GGA sentence", fix)
	}
}

func TestReceiverNextFixSkipsMalformed(t *testing.T) {
	stream := strings.Join([]string{
		"$GPGGA,garbage", // malformed candidate, skipped
		sampleGGA,
		"",
	}, "\r\n")

	r := NewReceiver(io.NopCloser(strings.NewReader(stream)), "test")
	defer r.Close()

	fix, err := r.NextFix(context.Background())
	if err != nil {
		t.Fatalf("NextFix: %v", err)
	}
	if fix.Satellites != 8 {
		t.Errorf("Satellites = %d, want 8", fix.Satellites)
	}
}

func TestReceiverNextFixCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReceiver(io.NopCloser(strings.NewReader(sampleGGA+"\r\n")), "test")
	defer r.Close()

	if _, err := r.NextFix(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("NextFix on cancelled context: error = %v, want context.Canceled", err)
	}
}
