// Package orchestrator drives one conversational request from the incoming
// user message to the final answer with its map attachments.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	nodex "github.com/tanpawarit/flight-search-agent/agent/nodes/orchestrator"
	toolx "github.com/tanpawarit/flight-search-agent/agent/tool"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidContext = nodex.ErrInvalidContext
	ErrInvalidTask    = nodex.ErrInvalidTask
)

// Agent runs the tool-calling loop over a catalog.
type Agent interface {
	Run(ctx context.Context, catalog *toolx.Catalog, prompt string) *adk.AsyncIterator[*contractx.Event]
}

type Request struct {
	TaskID    string
	ContextID string
	Message   contractx.Message
	Forms     contractx.FormRequester
}

type Orchestrator struct {
	agent      Agent
	history    contractx.History
	tools      toolx.Provider
	visualizer contractx.Visualizer
	uploader   contractx.FileUploader

	prepareRunner  compose.Runnable[nodex.GraphInput, *nodex.GraphState]
	finalizeRunner compose.Runnable[nodex.FinalizeInput, *contractx.Message]

	now   func() time.Time
	newID func() string
}

// New wires the orchestrator. tools may be nil, in which case only the local
// tools are offered to the agent.
func New(
	agent Agent,
	history contractx.History,
	tools toolx.Provider,
	visualizer contractx.Visualizer,
	uploader contractx.FileUploader,
) (*Orchestrator, error) {
	if agent == nil {
		return nil, errors.New("agent is required")
	}
	if history == nil {
		return nil, errors.New("history is required")
	}
	if visualizer == nil {
		return nil, errors.New("visualizer is required")
	}
	if uploader == nil {
		return nil, errors.New("file uploader is required")
	}

	o := &Orchestrator{
		agent:      agent,
		history:    history,
		tools:      tools,
		visualizer: visualizer,
		uploader:   uploader,
		now:        time.Now,
		newID:      func() string { return xid.New().String() },
	}

	ctx := context.Background()
	prepareRunner, err := o.compilePrepareGraph(ctx)
	if err != nil {
		return nil, err
	}
	o.prepareRunner = prepareRunner

	finalizeRunner, err := o.compileFinalizeGraph(ctx)
	if err != nil {
		return nil, err
	}
	o.finalizeRunner = finalizeRunner

	return o, nil
}

// Run streams delta, tool_call and tool_result events while the agent works,
// then one part event per file attachment and a done event carrying the
// stored reply. Failures end the stream with an error event.
func (o *Orchestrator) Run(ctx context.Context, req Request) *adk.AsyncIterator[*contractx.Event] {
	iter, gen := adk.NewAsyncIteratorPair[*contractx.Event]()
	go func() {
		defer gen.Close()

		ctx := log.Ctx(ctx).With().
			Str("task_id", req.TaskID).
			Str("context_id", req.ContextID).
			Logger().
			WithContext(ctx)

		if err := o.run(ctx, req, gen); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("request failed")
			ev := contractx.ErrorEvent(err)
			ev.TaskID = req.TaskID
			ev.ContextID = req.ContextID
			gen.Send(ev)
		}
	}()
	return iter
}

func (o *Orchestrator) run(ctx context.Context, req Request, gen *adk.AsyncGenerator[*contractx.Event]) error {
	st, err := o.prepareRunner.Invoke(ctx, nodex.GraphInput{
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Message:   req.Message,
	})
	if err != nil {
		return err
	}

	catalog, closeTools, err := o.catalog(ctx, req.Forms)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeTools(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("close remote tools")
		}
	}()

	answer, artifacts, err := o.drain(ctx, o.agent.Run(ctx, catalog, st.Prompt), st, gen)
	if err != nil {
		return err
	}

	reply, err := o.finalizeRunner.Invoke(ctx, nodex.FinalizeInput{
		TaskID:    st.TaskID,
		ContextID: st.ContextID,
		Answer:    answer,
		Artifacts: artifacts,
	})
	if err != nil {
		return err
	}

	for i := range reply.Parts {
		if reply.Parts[i].Kind != contractx.PartFile {
			continue
		}
		part := reply.Parts[i]
		gen.Send(&contractx.Event{
			Kind:      contractx.EventPart,
			TaskID:    st.TaskID,
			ContextID: st.ContextID,
			Part:      &part,
		})
	}
	gen.Send(&contractx.Event{
		Kind:      contractx.EventDone,
		TaskID:    st.TaskID,
		ContextID: st.ContextID,
		Text:      answer,
		Message:   reply,
	})

	log.Ctx(ctx).Info().
		Int("parts", len(reply.Parts)).
		Msg("request completed")
	return nil
}

// catalog offers the form and visualization tools plus whatever the remote
// provider lists for this request.
func (o *Orchestrator) catalog(ctx context.Context, forms contractx.FormRequester) (*toolx.Catalog, func() error, error) {
	tools := []toolx.Tool{
		toolx.EnsureAllData(forms),
		toolx.VisualizeFlights(o.visualizer),
	}
	closeTools := func() error { return nil }

	if o.tools != nil {
		ts, err := o.tools.Connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		closeTools = ts.Close
		tools = append(tools, ts.Tools()...)
	}

	catalog, err := toolx.NewCatalog(tools...)
	if err != nil {
		_ = closeTools()
		return nil, nil, err
	}
	return catalog, closeTools, nil
}

// drain forwards agent events and returns the final answer together with
// the artifacts of the last visualization.
func (o *Orchestrator) drain(
	ctx context.Context,
	events *adk.AsyncIterator[*contractx.Event],
	st *nodex.GraphState,
	gen *adk.AsyncGenerator[*contractx.Event],
) (string, []contractx.Artifact, error) {
	var artifacts []contractx.Artifact
	for {
		ev, ok := events.Next()
		if !ok {
			return "", nil, fmt.Errorf("%w: agent stream ended without an answer", contractx.ErrRequirement)
		}
		if ev == nil {
			continue
		}

		switch ev.Kind {
		case contractx.EventDone:
			return ev.Text, artifacts, nil
		case contractx.EventError:
			if ev.Err != nil {
				return "", nil, ev.Err
			}
			return "", nil, errors.New(ev.Error)
		case contractx.EventToolResult:
			if ev.ToolResult != nil && ev.ToolResult.Tool == toolx.ToolVisualizeFlights && len(ev.ToolResult.Artifacts) > 0 {
				artifacts = ev.ToolResult.Artifacts
			}
		}

		ev.TaskID = st.TaskID
		ev.ContextID = st.ContextID
		gen.Send(ev)

		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
	}
}
