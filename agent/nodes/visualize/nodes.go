package visualizenode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	"github.com/tanpawarit/flight-search-agent/pkg/route"
)

type RouteBuilder interface {
	Build(itineraries [][]string) (*route.Collection, error)
}

type StaticRenderer interface {
	RenderStatic(ctx context.Context, c *route.Collection) ([]byte, error)
}

type InteractiveRenderer interface {
	RenderInteractive(c *route.Collection) ([]byte, error)
}

type GraphInput struct {
	Flights [][]string
}

type GraphState struct {
	Flights    [][]string
	Collection *route.Collection

	Interactive []byte
	Static      []byte
}

func BuildRoutes(ctx context.Context, in GraphInput, builder RouteBuilder) (*GraphState, error) {
	if len(in.Flights) == 0 {
		return nil, fmt.Errorf("%w: no flights to visualize", contractx.ErrValidation)
	}

	c, err := builder.Build(in.Flights)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().
		Int("itineraries", len(in.Flights)).
		Int("segments", len(c.Segments)).
		Int("airports", len(c.Airports)).
		Msg("routes built")

	return &GraphState{Flights: in.Flights, Collection: c}, nil
}

func RenderInteractive(in *GraphState, r InteractiveRenderer) (*GraphState, error) {
	if in == nil || in.Collection == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	out, err := r.RenderInteractive(in.Collection)
	if err != nil {
		return nil, err
	}
	in.Interactive = out
	return in, nil
}

func RenderStatic(ctx context.Context, in *GraphState, r StaticRenderer) (*GraphState, error) {
	if in == nil || in.Collection == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	out, err := r.RenderStatic(ctx, in.Collection)
	if err != nil {
		return nil, err
	}
	in.Static = out
	return in, nil
}

func CollectArtifacts(in *GraphState) (contractx.Visualization, error) {
	if in == nil || in.Collection == nil {
		return contractx.Visualization{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if len(in.Static) == 0 || len(in.Interactive) == 0 {
		return contractx.Visualization{}, fmt.Errorf("%w: renderer returned an empty buffer", contractx.ErrValidation)
	}
	return contractx.Visualization{
		Segments:    len(in.Collection.Segments),
		Airports:    len(in.Collection.Airports),
		StaticPNG:   in.Static,
		Interactive: in.Interactive,
	}, nil
}
