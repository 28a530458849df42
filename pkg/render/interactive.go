package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/tanpawarit/flight-search-agent/pkg/route"
)

const (
	leafletCSS     = "https://cdn.jsdelivr.net/npm/leaflet@1.9.3/dist/leaflet.css"
	leafletJS      = "https://cdn.jsdelivr.net/npm/leaflet@1.9.3/dist/leaflet.js"
	tileURL        = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	tileAttributes = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`
)

// DefaultCenter is lat/lon; Leaflet wants coordinates in that order.
var DefaultCenter = [2]float64{30.0, 0.0}

const DefaultZoom = 2

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1.0"/>
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.CSS}}"/>
<script src="{{.JS}}"></script>
<style>html, body {width: 100%; height: 100%; margin: 0; padding: 0;} #map {position: absolute; top: 0; bottom: 0; right: 0; left: 0;}</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map", {center: {{.Center}}, zoom: {{.Zoom}}});
L.tileLayer({{.Tiles}}, {attribution: {{.Attribution}}, maxZoom: 19}).addTo(map);
{{- range .Lines}}
L.polyline({{.Coords}}, {color: {{.Color}}, weight: 3, opacity: 0.7}).bindTooltip({{.Tooltip}}).addTo(map);
{{- end}}
{{- range .Markers}}
L.circleMarker({{.Coord}}, {radius: 8, color: "blue", fill: true, fillColor: "blue", fillOpacity: 0.7}).bindTooltip({{.Tooltip}}).addTo(map);
{{- end}}
</script>
</body>
</html>
`))

type polyline struct {
	Coords  [][2]float64
	Color   string
	Tooltip string
}

type marker struct {
	Coord   [2]float64
	Tooltip string
}

type mapView struct {
	Title       string
	CSS         string
	JS          string
	Center      [2]float64
	Zoom        int
	Tiles       string
	Attribution string
	Lines       []polyline
	Markers     []marker
}

type InteractiveRenderer struct{}

func NewInteractiveRenderer() *InteractiveRenderer {
	return &InteractiveRenderer{}
}

// RenderInteractive writes a standalone Leaflet page: one polyline per
// segment with its label as tooltip and one circle marker per airport.
func (r *InteractiveRenderer) RenderInteractive(c *route.Collection) ([]byte, error) {
	if c.Empty() {
		return nil, errors.New("nothing to render")
	}

	view := mapView{
		Title:       Title,
		CSS:         leafletCSS,
		JS:          leafletJS,
		Center:      DefaultCenter,
		Zoom:        DefaultZoom,
		Tiles:       tileURL,
		Attribution: tileAttributes,
		Lines:       make([]polyline, 0, len(c.Segments)),
		Markers:     make([]marker, 0, len(c.Airports)),
	}
	for _, s := range c.Segments {
		coords := make([][2]float64, 0, 2)
		for _, p := range s.Line() {
			coords = append(coords, [2]float64{p.Lat(), p.Lon()})
		}
		view.Lines = append(view.Lines, polyline{
			Coords:  coords,
			Color:   s.Color.Hex(),
			Tooltip: s.Label,
		})
	}
	for _, a := range c.Airports {
		view.Markers = append(view.Markers, marker{
			Coord:   [2]float64{a.Point.Lat(), a.Point.Lon()},
			Tooltip: a.Code,
		})
	}

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render map html: %w", err)
	}
	return buf.Bytes(), nil
}
