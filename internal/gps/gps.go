// Package gps decodes positioning fixes from an NMEA serial feed and
// decides whether they are trustworthy enough to attach to records.
package gps

// FixQuality is the GGA fix-quality ordinal reported by the receiver.
type FixQuality int

const (
	QualityInvalid FixQuality = iota
	QualityGPS
	QualityDGPS
	QualityPPS
	QualityRTKFixed
	QualityRTKFloat
	QualityEstimated
	QualityManual
	QualitySimulated
)

var qualityNames = map[FixQuality]string{
	QualityInvalid:   "invalid",
	QualityGPS:       "gps",
	QualityDGPS:      "dgps",
	QualityPPS:       "pps",
	QualityRTKFixed:  "rtk-fixed",
	QualityRTKFloat:  "rtk-float",
	QualityEstimated: "estimated",
	QualityManual:    "manual",
	QualitySimulated: "simulated",
}

func (q FixQuality) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return "unknown"
}

// Fix is one decoded position snapshot from the receiver.
type Fix struct {
	Timestamp  string  // receiver-supplied UTC token, verbatim
	Latitude   float64 // decimal degrees, negative south
	Longitude  float64 // decimal degrees, negative west
	Quality    FixQuality
	Satellites int
	HDOP       float64 // horizontal dilution of precision
	Altitude   float64 // meters above mean sea level
}

// maxHDOP is the dilution-of-precision ceiling; readings at or above it
// are considered untrustworthy.
const maxHDOP = 20

// minSatellites is the satellite count a fix needs to be usable.
const minSatellites = 3

// Valid reports whether the fix is trustworthy enough to use. It never
// mutates the fix.
func (f *Fix) Valid() bool {
	return f.Quality != QualityInvalid && f.HDOP < maxHDOP && f.Satellites >= minSatellites
}
