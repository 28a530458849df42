package route

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tanpawarit/flight-search-agent/pkg/airport"
)

type fakeResolver struct {
	airports map[string]airport.Airport
	calls    []string
}

func (f *fakeResolver) Resolve(code string) (airport.Airport, error) {
	f.calls = append(f.calls, code)
	a, ok := f.airports[code]
	if !ok {
		return airport.Airport{}, fmt.Errorf("%w: %q", airport.ErrNotFound, code)
	}
	return a, nil
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{airports: map[string]airport.Airport{
		"PRG": {Code: "PRG", Lat: 50.1008, Lon: 14.26},
		"LAS": {Code: "LAS", Lat: 36.0801, Lon: -115.1522},
		"JFK": {Code: "JFK", Lat: 40.6398, Lon: -73.7789},
		"LHR": {Code: "LHR", Lat: 51.4706, Lon: -0.4619},
		"DXB": {Code: "DXB", Lat: 25.2528, Lon: 55.3644},
		"SIN": {Code: "SIN", Lat: 1.3502, Lon: 103.9944},
	}}
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(newFakeResolver())
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return b
}

func TestBuildSingleDirectFlight(t *testing.T) {
	t.Parallel()

	c, err := newTestBuilder(t).Build([][]string{{"PRG", "LAS"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(c.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(c.Segments))
	}
	if len(c.Airports) != 2 || c.Airports[0].Code != "PRG" || c.Airports[1].Code != "LAS" {
		t.Fatalf("unexpected airports: %+v", c.Airports)
	}

	seg := c.Segments[0]
	if seg.Label != "PRG → LAS (part of PRG → LAS)" {
		t.Fatalf("label = %q", seg.Label)
	}
	if seg.From.Lon() != 14.26 || seg.From.Lat() != 50.1008 {
		t.Fatalf("from = %v, want PRG lon/lat", seg.From)
	}
	if seg.Color != Palette[0] {
		t.Fatalf("color = %v, want palette slot 0", seg.Color)
	}
}

func TestBuildSegmentsPerItinerary(t *testing.T) {
	t.Parallel()

	c, err := newTestBuilder(t).Build([][]string{
		{"PRG", "LAS"},
		{"JFK", "LHR", "DXB", "SIN"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(c.Segments) != 4 {
		t.Fatalf("segments = %d, want 4", len(c.Segments))
	}

	wantLabels := []string{
		"PRG → LAS (part of PRG → LAS)",
		"JFK → LHR (part of JFK → LHR → DXB → SIN)",
		"LHR → DXB (part of JFK → LHR → DXB → SIN)",
		"DXB → SIN (part of JFK → LHR → DXB → SIN)",
	}
	for i, want := range wantLabels {
		if c.Segments[i].Label != want {
			t.Fatalf("segment %d label = %q, want %q", i, c.Segments[i].Label, want)
		}
	}
	for _, s := range c.Segments[1:] {
		if s.Color != Palette[1] || s.Itinerary != 1 {
			t.Fatalf("segment %s→%s color/itinerary = %v/%d", s.Origin, s.Destination, s.Color, s.Itinerary)
		}
	}

	wantCodes := []string{"PRG", "LAS", "JFK", "LHR", "DXB", "SIN"}
	if len(c.Airports) != len(wantCodes) {
		t.Fatalf("airports = %d, want %d", len(c.Airports), len(wantCodes))
	}
	for i, code := range wantCodes {
		if c.Airports[i].Code != code {
			t.Fatalf("airport %d = %s, want %s", i, c.Airports[i].Code, code)
		}
	}
}

func TestBuildDeduplicatesAirportsAcrossItineraries(t *testing.T) {
	t.Parallel()

	c, err := newTestBuilder(t).Build([][]string{{"PRG", "LAS"}, {"LAS", "PRG"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(c.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(c.Segments))
	}
	if len(c.Airports) != 2 {
		t.Fatalf("airports = %d, want 2", len(c.Airports))
	}
	if c.Segments[1].Color != Palette[1] {
		t.Fatalf("second itinerary color = %v, want palette slot 1", c.Segments[1].Color)
	}
}

func TestBuildShortItineraryHasPointsOnly(t *testing.T) {
	t.Parallel()

	c, err := newTestBuilder(t).Build([][]string{{"SIN"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(c.Segments) != 0 {
		t.Fatalf("segments = %d, want 0", len(c.Segments))
	}
	if len(c.Airports) != 1 || c.Airports[0].Code != "SIN" {
		t.Fatalf("unexpected airports: %+v", c.Airports)
	}
}

func TestBuildUnknownCodeReturnsNoGeometry(t *testing.T) {
	t.Parallel()

	c, err := newTestBuilder(t).Build([][]string{{"PRG", "LAS"}, {"JFK", "ZZZ"}})
	if !errors.Is(err, airport.ErrNotFound) {
		t.Fatalf("Build() error = %v, want ErrNotFound", err)
	}
	if c != nil {
		t.Fatalf("Build() returned partial collection: %+v", c)
	}
}

func TestBuildUnknownCodeInSingleWaypointItinerary(t *testing.T) {
	t.Parallel()

	if _, err := newTestBuilder(t).Build([][]string{{"ZZZ"}}); !errors.Is(err, airport.ErrNotFound) {
		t.Fatalf("Build() error = %v, want ErrNotFound", err)
	}
}

func TestPaletteColorCycles(t *testing.T) {
	t.Parallel()

	n := len(Palette)
	for i := 0; i < 3*n; i++ {
		if PaletteColor(i) != PaletteColor(i+n) {
			t.Fatalf("PaletteColor(%d) != PaletteColor(%d)", i, i+n)
		}
		if PaletteColor(i) != Palette[i%n] {
			t.Fatalf("PaletteColor(%d) = %v, want %v", i, PaletteColor(i), Palette[i%n])
		}
	}
	if got := Palette[0].Hex(); got != "#1f77b4" {
		t.Fatalf("Hex() = %q, want #1f77b4", got)
	}
}

func TestCollectionBound(t *testing.T) {
	t.Parallel()

	c, err := newTestBuilder(t).Build([][]string{{"PRG", "LAS"}, {"SIN"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	b := c.Bound()
	if b.Min.Lon() != -115.1522 || b.Max.Lon() != 103.9944 {
		t.Fatalf("lon range = [%v, %v]", b.Min.Lon(), b.Max.Lon())
	}
	if b.Min.Lat() != 1.3502 || b.Max.Lat() != 50.1008 {
		t.Fatalf("lat range = [%v, %v]", b.Min.Lat(), b.Max.Lat())
	}
}
