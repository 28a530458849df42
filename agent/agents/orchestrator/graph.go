package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	nodex "github.com/tanpawarit/flight-search-agent/agent/nodes/orchestrator"
)

func (o *Orchestrator) compilePrepareGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, *nodex.GraphState], error) {
	graph := compose.NewGraph[nodex.GraphInput, *nodex.GraphState]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now, o.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("store_input",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.StoreInput(ctx, in, o.history)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node store_input: %w", err)
	}

	if err := graph.AddLambdaNode("build_prompt",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.BuildPrompt(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node build_prompt: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "store_input"},
		{"store_input", "build_prompt"},
		{"build_prompt", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.prepare"))
	if err != nil {
		return nil, fmt.Errorf("compile prepare graph: %w", err)
	}
	return runner, nil
}

func (o *Orchestrator) compileFinalizeGraph(
	ctx context.Context,
) (compose.Runnable[nodex.FinalizeInput, *contractx.Message], error) {
	graph := compose.NewGraph[nodex.FinalizeInput, *contractx.Message]()

	if err := graph.AddLambdaNode("compose_reply",
		compose.InvokableLambda(func(ctx context.Context, in nodex.FinalizeInput) (*nodex.FinalizeState, error) {
			return nodex.ComposeReply(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compose_reply: %w", err)
	}

	if err := graph.AddLambdaNode("attach_static_map",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.FinalizeState) (*nodex.FinalizeState, error) {
			return nodex.AttachStaticMap(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node attach_static_map: %w", err)
	}

	if err := graph.AddLambdaNode("attach_interactive_map",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.FinalizeState) (*nodex.FinalizeState, error) {
			return nodex.AttachInteractiveMap(ctx, in, o.uploader)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node attach_interactive_map: %w", err)
	}

	if err := graph.AddLambdaNode("store_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.FinalizeState) (*contractx.Message, error) {
			return nodex.StoreReply(ctx, in, o.history, o.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node store_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "compose_reply"},
		{"compose_reply", "attach_static_map"},
		{"attach_static_map", "attach_interactive_map"},
		{"attach_interactive_map", "store_reply"},
		{"store_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.finalize"))
	if err != nil {
		return nil, fmt.Errorf("compile finalize graph: %w", err)
	}
	return runner, nil
}
