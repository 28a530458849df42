// Package visualizer turns itineraries into the static PNG and interactive
// HTML maps.
package visualizer

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	nodex "github.com/tanpawarit/flight-search-agent/agent/nodes/visualize"
)

type Service struct {
	builder     nodex.RouteBuilder
	static      nodex.StaticRenderer
	interactive nodex.InteractiveRenderer

	graphRunner compose.Runnable[nodex.GraphInput, contractx.Visualization]
}

var _ contractx.Visualizer = (*Service)(nil)

func New(
	builder nodex.RouteBuilder,
	static nodex.StaticRenderer,
	interactive nodex.InteractiveRenderer,
) (*Service, error) {
	if builder == nil {
		return nil, errors.New("route builder is required")
	}
	if static == nil {
		return nil, errors.New("static renderer is required")
	}
	if interactive == nil {
		return nil, errors.New("interactive renderer is required")
	}

	s := &Service{
		builder:     builder,
		static:      static,
		interactive: interactive,
	}

	graphRunner, err := s.compileVisualizeGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// Visualize builds the route geometry once and renders both maps from it.
// Errors from any stage are returned as is.
func (s *Service) Visualize(ctx context.Context, flights [][]string) (contractx.Visualization, error) {
	return s.graphRunner.Invoke(ctx, nodex.GraphInput{Flights: flights})
}
