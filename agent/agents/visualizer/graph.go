package visualizer

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	nodex "github.com/tanpawarit/flight-search-agent/agent/nodes/visualize"
)

func (s *Service) compileVisualizeGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, contractx.Visualization], error) {
	graph := compose.NewGraph[nodex.GraphInput, contractx.Visualization]()

	if err := graph.AddLambdaNode("build_routes",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.BuildRoutes(ctx, in, s.builder)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node build_routes: %w", err)
	}

	if err := graph.AddLambdaNode("render_interactive",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RenderInteractive(in, s.interactive)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node render_interactive: %w", err)
	}

	if err := graph.AddLambdaNode("render_static",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RenderStatic(ctx, in, s.static)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node render_static: %w", err)
	}

	if err := graph.AddLambdaNode("collect_artifacts",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (contractx.Visualization, error) {
			return nodex.CollectArtifacts(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node collect_artifacts: %w", err)
	}

	edges := [][2]string{
		{compose.START, "build_routes"},
		{"build_routes", "render_interactive"},
		{"render_interactive", "render_static"},
		{"render_static", "collect_artifacts"},
		{"collect_artifacts", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("visualizer.visualize"))
	if err != nil {
		return nil, fmt.Errorf("compile visualizer graph: %w", err)
	}
	return runner, nil
}
