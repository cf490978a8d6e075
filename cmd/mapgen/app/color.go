package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Hue sweep for the level ramp: deep blue for the quietest bin down to
// red for the loudest.
const (
	hueStart = 236.0
	hueEnd   = 0.0
)

// levelColor maps a level to a color on the blue-to-red HSV ramp
// spanned by [minLevel, maxLevel]. Levels outside the span clamp to the
// ramp ends; a degenerate span renders everything red.
func levelColor(level, minLevel, maxLevel float64) color.Color {
	span := maxLevel - minLevel
	if span <= 0 {
		return colorful.Hsv(hueEnd, 1, 0.90)
	}

	hPerDB := (hueStart - hueEnd) / span

	hue := hueStart - (level-minLevel)*hPerDB
	hue = math.Min(math.Max(hue, hueEnd), hueStart)

	return colorful.Hsv(hue, 1, 0.90)
}
