// Package route turns itineraries (ordered airport codes) into drawable
// geometry: one segment per leg and one point per distinct airport.
package route

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/tanpawarit/flight-search-agent/pkg/airport"
)

const arrow = " → "

type Segment struct {
	From        orb.Point
	To          orb.Point
	Origin      string
	Destination string
	Label       string
	Color       Color
	Itinerary   int
}

func (s Segment) Line() orb.LineString {
	return orb.LineString{s.From, s.To}
}

type AirportPoint struct {
	Code  string
	Point orb.Point
}

// Collection is owned by the request that built it.
type Collection struct {
	Segments []Segment
	Airports []AirportPoint
}

// Bound is the union of every segment and airport point. The zero bound is
// returned for an empty collection.
func (c *Collection) Bound() orb.Bound {
	if c == nil {
		return orb.Bound{}
	}

	var (
		b     orb.Bound
		first = true
	)
	extend := func(p orb.Point) {
		if first {
			b = p.Bound()
			first = false
			return
		}
		b = b.Extend(p)
	}
	for _, s := range c.Segments {
		extend(s.From)
		extend(s.To)
	}
	for _, a := range c.Airports {
		extend(a.Point)
	}
	return b
}

func (c *Collection) Empty() bool {
	return c == nil || (len(c.Segments) == 0 && len(c.Airports) == 0)
}

type Builder struct {
	resolver airport.Resolver
}

func NewBuilder(resolver airport.Resolver) (*Builder, error) {
	if resolver == nil {
		return nil, errors.New("airport resolver is required")
	}
	return &Builder{resolver: resolver}, nil
}

// Build resolves every waypoint and returns the segments in itinerary then
// leg order, plus airports in first-seen order. Any unknown code fails the
// whole build.
func (b *Builder) Build(itineraries [][]string) (*Collection, error) {
	var segments []Segment
	for i, itinerary := range itineraries {
		color := PaletteColor(i)

		for j := 0; j+1 < len(itinerary); j++ {
			origin, dest := itinerary[j], itinerary[j+1]

			from, err := b.resolver.Resolve(origin)
			if err != nil {
				return nil, fmt.Errorf("itinerary %d: %w", i, err)
			}
			to, err := b.resolver.Resolve(dest)
			if err != nil {
				return nil, fmt.Errorf("itinerary %d: %w", i, err)
			}

			segments = append(segments, Segment{
				From:        from.Point(),
				To:          to.Point(),
				Origin:      origin,
				Destination: dest,
				Label:       SegmentLabel(origin, dest, itinerary),
				Color:       color,
				Itinerary:   i,
			})
		}
	}

	var (
		airports []AirportPoint
		seen     = make(map[string]struct{})
	)
	for i, itinerary := range itineraries {
		for _, code := range itinerary {
			if _, ok := seen[code]; ok {
				continue
			}
			a, err := b.resolver.Resolve(code)
			if err != nil {
				return nil, fmt.Errorf("itinerary %d: %w", i, err)
			}
			seen[code] = struct{}{}
			airports = append(airports, AirportPoint{Code: code, Point: a.Point()})
		}
	}

	return &Collection{Segments: segments, Airports: airports}, nil
}

// SegmentLabel formats "PRG → LAS (part of PRG → LAS)".
func SegmentLabel(origin, dest string, itinerary []string) string {
	return origin + arrow + dest + " (part of " + strings.Join(itinerary, arrow) + ")"
}
