package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"

	"github.com/tanpawarit/flight-search-agent/pkg/basemap"
	"github.com/tanpawarit/flight-search-agent/pkg/route"
)

const (
	Title = "Flight Paths"

	paddingRatio = 0.1

	// Sizes in points, scaled by DPI/72.
	countryEdgeWidth = 0.5
	segmentWidth     = 2.0
	markerDiameter   = 10.0
	labelFontSize    = 10.0
	labelOffset      = 5.0
	labelPad         = 0.3 * labelFontSize
	titleFontSize    = 16.0
	titleMargin      = 8.0

	segmentAlpha = 0.7
	markerAlpha  = 0.9
	labelAlpha   = 0.7
)

var (
	countryFill = color.NRGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}
	countryEdge = color.Black
	markerColor = route.Color{B: 0xff}.NRGBA(markerAlpha)
	labelFill   = route.Color{R: 0xff, G: 0xff}.NRGBA(labelAlpha)
)

type Config struct {
	DPI           float64 `split_words:"true" default:"300"`
	WidthInches   float64 `split_words:"true" default:"15"`
	HeightInches  float64 `split_words:"true" default:"10"`
	MinPaddingDeg float64 `split_words:"true" default:"1"`
}

var DefaultConfig = Config{
	DPI:           300,
	WidthInches:   15,
	HeightInches:  10,
	MinPaddingDeg: 1,
}

func (c Config) withDefaults() Config {
	if c.DPI <= 0 {
		c.DPI = DefaultConfig.DPI
	}
	if c.WidthInches <= 0 {
		c.WidthInches = DefaultConfig.WidthInches
	}
	if c.HeightInches <= 0 {
		c.HeightInches = DefaultConfig.HeightInches
	}
	if c.MinPaddingDeg < 0 {
		c.MinPaddingDeg = 0
	}
	return c
}

// Viewport pads the collection bound by 10% of its width and height on each
// side. An axis with zero extent gets minPadding degrees instead.
func Viewport(c *route.Collection, minPadding float64) orb.Bound {
	b := c.Bound()
	padX := (b.Max.X() - b.Min.X()) * paddingRatio
	padY := (b.Max.Y() - b.Min.Y()) * paddingRatio
	if padX == 0 {
		padX = minPadding
	}
	if padY == 0 {
		padY = minPadding
	}
	return orb.Bound{
		Min: orb.Point{b.Min.X() - padX, b.Min.Y() - padY},
		Max: orb.Point{b.Max.X() + padX, b.Max.Y() + padY},
	}
}

type StaticRenderer struct {
	basemap basemap.Source
	cfg     Config

	labelFace font.Face
	titleFace font.Face
}

func NewStaticRenderer(source basemap.Source, cfg Config) (*StaticRenderer, error) {
	if source == nil {
		return nil, errors.New("basemap source is required")
	}
	cfg = cfg.withDefaults()

	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	labelFace, err := opentype.NewFace(bold, &opentype.FaceOptions{
		Size:    labelFontSize,
		DPI:     cfg.DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create label face: %w", err)
	}
	titleFace, err := opentype.NewFace(bold, &opentype.FaceOptions{
		Size:    titleFontSize,
		DPI:     cfg.DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create title face: %w", err)
	}

	return &StaticRenderer{
		basemap:   source,
		cfg:       cfg,
		labelFace: labelFace,
		titleFace: titleFace,
	}, nil
}

// projection maps lon/lat into canvas pixels for a plate carree view with
// the y axis stretched by 1/cos(mean latitude).
type projection struct {
	view    orb.Bound
	scale   float64
	aspect  float64
	offsetY float64
}

func (p projection) xy(pt orb.Point) (float64, float64) {
	x := (pt.X() - p.view.Min.X()) * p.scale
	y := p.offsetY + (p.view.Max.Y()-pt.Y())*p.aspect*p.scale
	return x, y
}

func geoAspect(view orb.Bound) float64 {
	meanLat := (view.Min.Y() + view.Max.Y()) / 2
	c := math.Cos(meanLat * math.Pi / 180)
	if c < 0.05 {
		c = 0.05
	}
	return 1 / c
}

// RenderStatic draws basemap, segments, airports and labels in that order and
// returns PNG bytes. Basemap failures abort rendering.
func (r *StaticRenderer) RenderStatic(ctx context.Context, c *route.Collection) ([]byte, error) {
	if c.Empty() {
		return nil, errors.New("nothing to render")
	}

	bm, err := r.basemap.Load(ctx)
	if err != nil {
		return nil, err
	}

	pt := r.cfg.DPI / 72
	view := Viewport(c, r.cfg.MinPaddingDeg)
	aspect := geoAspect(view)

	spanX := view.Max.X() - view.Min.X()
	spanY := (view.Max.Y() - view.Min.Y()) * aspect
	if spanX <= 0 || spanY <= 0 {
		return nil, fmt.Errorf("zero-extent view %v: set a minimum padding", view)
	}
	maxW := r.cfg.WidthInches * r.cfg.DPI
	maxH := r.cfg.HeightInches * r.cfg.DPI
	scale := math.Min(maxW/spanX, maxH/spanY)

	titleBand := math.Ceil((titleFontSize + 2*titleMargin) * pt)
	width := int(math.Ceil(spanX * scale))
	height := int(math.Ceil(spanY*scale + titleBand))

	proj := projection{view: view, scale: scale, aspect: aspect, offsetY: titleBand}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	// Map area only; the title band stays clean.
	dc.DrawRectangle(0, titleBand, float64(width), float64(height)-titleBand)
	dc.Clip()

	r.drawBasemap(dc, proj, bm, pt)
	r.drawSegments(dc, proj, c.Segments, pt)
	r.drawAirports(dc, proj, c.Airports, pt)
	r.drawLabels(dc, proj, c.Airports, pt)

	dc.ResetClip()
	dc.SetFontFace(r.titleFace)
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(Title, float64(width)/2, titleBand/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *StaticRenderer) drawBasemap(dc *gg.Context, proj projection, bm *basemap.Basemap, pt float64) {
	dc.SetFillRuleEvenOdd()
	for _, poly := range bm.Polygons {
		if !poly.Bound().Intersects(proj.view) {
			continue
		}
		for _, ring := range poly {
			for i, p := range ring {
				x, y := proj.xy(p)
				if i == 0 {
					dc.MoveTo(x, y)
					continue
				}
				dc.LineTo(x, y)
			}
			dc.ClosePath()
			dc.NewSubPath()
		}
		dc.SetColor(countryFill)
		dc.FillPreserve()
		dc.SetColor(countryEdge)
		dc.SetLineWidth(countryEdgeWidth * pt)
		dc.Stroke()
	}
}

func (r *StaticRenderer) drawSegments(dc *gg.Context, proj projection, segments []route.Segment, pt float64) {
	dc.SetLineWidth(segmentWidth * pt)
	dc.SetLineCapRound()
	for _, s := range segments {
		x0, y0 := proj.xy(s.From)
		x1, y1 := proj.xy(s.To)
		dc.SetColor(s.Color.NRGBA(segmentAlpha))
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}
}

func (r *StaticRenderer) drawAirports(dc *gg.Context, proj projection, airports []route.AirportPoint, pt float64) {
	dc.SetColor(markerColor)
	for _, a := range airports {
		x, y := proj.xy(a.Point)
		dc.DrawCircle(x, y, markerDiameter*pt/2)
		dc.Fill()
	}
}

func (r *StaticRenderer) drawLabels(dc *gg.Context, proj projection, airports []route.AirportPoint, pt float64) {
	dc.SetFontFace(r.labelFace)
	for _, a := range airports {
		x, y := proj.xy(a.Point)
		w, h := dc.MeasureString(a.Code)

		left := x + labelOffset*pt
		bottom := y - labelOffset*pt
		pad := labelPad * pt

		dc.SetColor(labelFill)
		dc.DrawRoundedRectangle(left-pad, bottom-h-pad, w+2*pad, h+2*pad, pad)
		dc.Fill()

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(a.Code, left, bottom, 0, 0)
	}
}
