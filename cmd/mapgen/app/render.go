package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/k7rfm/rfmap/internal/record"
)

const (
	dpi      = 120.0
	fontSize = 12.0

	defaultPlotWidth = 1024
	minPlotHeight    = 256
	maxPlotHeight    = 2048

	markerRadius = 4

	legendWidth  = 256
	legendHeight = 10

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 40
	defaultBottomBorder = 60
	defaultRightBorder  = 40
)

// ErrNoPositionedRecords is returned when the record set holds nothing
// that can be placed on a map.
var ErrNoPositionedRecords = errors.New("no positioned records to render")

// BorderConfig defines the sizes of white space around the plot area.
type BorderConfig struct {
	Top    int
	Left   int
	Bottom int // Space for the legend and information bar
	Right  int
}

// RenderConfig holds the map visualization options.
type RenderConfig struct {
	PlotWidth   int     // Plot area width in pixels
	FontSize    float64 // Font size in points
	TitlePrefix string  // Optional leading title text, e.g. the listening frequency
	Borders     BorderConfig
}

// MapRenderer draws a record set as a scatter heatmap on an
// equirectangular latitude/longitude canvas centered on the data.
type MapRenderer struct {
	config RenderConfig
}

// NewMapRenderer creates a renderer, filling in defaults for zero
// values.
func NewMapRenderer(config RenderConfig) *MapRenderer {
	if config.PlotWidth == 0 {
		config.PlotWidth = defaultPlotWidth
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	return &MapRenderer{config: config}
}

// extent is the geographic and level span of a record set.
type extent struct {
	minLat, maxLat     float64
	minLng, maxLng     float64
	minLevel, maxLevel float64
}

func computeExtent(records []record.Record) extent {
	e := extent{
		minLat: math.Inf(1), maxLat: math.Inf(-1),
		minLng: math.Inf(1), maxLng: math.Inf(-1),
		minLevel: math.Inf(1), maxLevel: math.Inf(-1),
	}
	for _, r := range records {
		e.minLat = math.Min(e.minLat, *r.Latitude)
		e.maxLat = math.Max(e.maxLat, *r.Latitude)
		e.minLng = math.Min(e.minLng, *r.Longitude)
		e.maxLng = math.Max(e.maxLng, *r.Longitude)
		e.minLevel = math.Min(e.minLevel, r.LevelDB)
		e.maxLevel = math.Max(e.maxLevel, r.LevelDB)
	}

	// Pad so markers at the edge do not sit on the plot boundary. A
	// single-point set still gets a visible, non-degenerate canvas.
	latPad := math.Max((e.maxLat-e.minLat)*0.05, 0.0005)
	lngPad := math.Max((e.maxLng-e.minLng)*0.05, 0.0005)
	e.minLat -= latPad
	e.maxLat += latPad
	e.minLng -= lngPad
	e.maxLng += lngPad

	return e
}

// plotHeight derives the plot height from the geographic aspect ratio.
// Longitude degrees shrink by cos(latitude) on an equirectangular
// canvas, so the height is corrected by the mid-latitude before
// clamping to a sane pixel range.
func (r *MapRenderer) plotHeight(e extent) int {
	latSpan := e.maxLat - e.minLat
	lngSpan := (e.maxLng - e.minLng) * math.Cos((e.minLat+e.maxLat)/2*math.Pi/180)
	if lngSpan <= 0 {
		return minPlotHeight
	}

	h := int(float64(r.config.PlotWidth) * latSpan / lngSpan)
	if h < minPlotHeight {
		return minPlotHeight
	}
	if h > maxPlotHeight {
		return maxPlotHeight
	}
	return h
}

// Render draws the records onto a fresh image. Records without a
// position must be filtered out by the caller.
func (r *MapRenderer) Render(records []record.Record) (*image.RGBA, error) {
	if len(records) == 0 {
		return nil, ErrNoPositionedRecords
	}

	e := computeExtent(records)
	width := r.config.PlotWidth
	height := r.plotHeight(e)

	fullWidth := width + r.config.Borders.Left + r.config.Borders.Right
	fullHeight := height + r.config.Borders.Top + r.config.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	plotArea := image.Rect(
		r.config.Borders.Left,
		r.config.Borders.Top,
		r.config.Borders.Left+width,
		r.config.Borders.Top+height,
	)
	drawFrame(img, plotArea)

	for _, rec := range records {
		x := plotArea.Min.X + int((*rec.Longitude-e.minLng)/(e.maxLng-e.minLng)*float64(width))
		y := plotArea.Min.Y + int((e.maxLat-*rec.Latitude)/(e.maxLat-e.minLat)*float64(height))
		drawMarker(img, x, y, markerRadius, levelColor(rec.LevelDB, e.minLevel, e.maxLevel))
	}

	ann, err := newAnnotator(r.config)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, plotArea, e, len(records)); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// drawMarker fills a circle of the given radius.
func drawMarker(img *image.RGBA, cx, cy, radius int, c color.Color) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

// drawFrame outlines the plot area.
func drawFrame(img *image.RGBA, area image.Rectangle) {
	for x := area.Min.X; x <= area.Max.X; x++ {
		img.Set(x, area.Min.Y, color.Black)
		img.Set(x, area.Max.Y, color.Black)
	}
	for y := area.Min.Y; y <= area.Max.Y; y++ {
		img.Set(area.Min.X, y, color.Black)
		img.Set(area.Max.X, y, color.Black)
	}
}

// Internal annotator implementation

type annotator struct {
	context  *freetype.Context
	config   RenderConfig
	fontFace font.Face
}

func newAnnotator(config RenderConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, plotArea image.Rectangle, e extent, count int) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawTitle(img, e, count); err != nil {
		return fmt.Errorf("drawing title: %w", err)
	}
	if err := a.drawLegend(img, plotArea, e); err != nil {
		return fmt.Errorf("drawing legend: %w", err)
	}
	return nil
}

// drawTitle writes the geographic bounds and record count across the
// top border.
func (a *annotator) drawTitle(img *image.RGBA, e extent, count int) error {
	title := fmt.Sprintf("Lat %s to %s; Lng %s to %s; %s records",
		humanize.FtoaWithDigits(e.minLat, 4),
		humanize.FtoaWithDigits(e.maxLat, 4),
		humanize.FtoaWithDigits(e.minLng, 4),
		humanize.FtoaWithDigits(e.maxLng, 4),
		humanize.Comma(int64(count)))
	if a.config.TitlePrefix != "" {
		title = a.config.TitlePrefix + "; " + title
	}

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := a.config.Borders.Top - fontHeight/2

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(title, pt); err != nil {
		return err
	}
	return nil
}

// drawLegend draws the level ramp with its dB endpoints in the bottom
// border.
func (a *annotator) drawLegend(img *image.RGBA, plotArea image.Rectangle, e extent) error {
	low := humanize.FtoaWithDigits(e.minLevel, 1) + " dB"
	lowWidth := font.MeasureString(a.fontFace, low)

	barX := plotArea.Min.X + lowWidth.Round() + 8
	barY := img.Bounds().Max.Y - a.config.Borders.Bottom + (a.config.Borders.Bottom-legendHeight)/2

	for i := 0; i < legendWidth; i++ {
		level := e.minLevel + (e.maxLevel-e.minLevel)*float64(i)/float64(legendWidth-1)
		c := levelColor(level, e.minLevel, e.maxLevel)
		for j := 0; j < legendHeight; j++ {
			img.Set(barX+i, barY+j, c)
		}
	}

	metrics := a.fontFace.Metrics()
	textY := barY + legendHeight/2 + metrics.Ascent.Round()/2

	pt := freetype.Pt(plotArea.Min.X, textY)
	if _, err := a.context.DrawString(low, pt); err != nil {
		return err
	}

	high := humanize.FtoaWithDigits(e.maxLevel, 1) + " dB"
	pt = freetype.Pt(barX+legendWidth+8, textY)
	if _, err := a.context.DrawString(high, pt); err != nil {
		return err
	}
	return nil
}
