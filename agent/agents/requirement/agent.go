// Package requirement runs a tool-calling loop in which rules can force the
// model to call a specific tool at a given step or after other tools ran.
package requirement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cloudwego/eino/adk"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	toolx "github.com/tanpawarit/flight-search-agent/agent/tool"
)

const DefaultMaxSteps = 12

// Rule forces Tool at step ForceAtStep (1-based, 0 disables) and on the step
// after any tool in ForceAfter ran, until Tool itself has run. With
// ForceAfterRemote the trigger set is every remote tool of the catalog.
type Rule struct {
	Tool             string
	ForceAtStep      int
	ForceAfter       []string
	ForceAfterRemote bool
}

type Config struct {
	SystemPrompt string
	MaxSteps     int
}

type Agent struct {
	model    einomodel.ToolCallingChatModel
	rules    []Rule
	system   string
	maxSteps int
}

func New(chatModel einomodel.ToolCallingChatModel, cfg Config, rules ...Rule) (*Agent, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	for _, r := range rules {
		if strings.TrimSpace(r.Tool) == "" {
			return nil, fmt.Errorf("%w: rule tool is empty", contractx.ErrValidation)
		}
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Agent{
		model:    chatModel,
		rules:    rules,
		system:   strings.TrimSpace(cfg.SystemPrompt),
		maxSteps: maxSteps,
	}, nil
}

// Run streams delta, tool_call and tool_result events and ends with either a
// done event carrying the final answer or an error event.
func (a *Agent) Run(ctx context.Context, catalog *toolx.Catalog, prompt string) *adk.AsyncIterator[*contractx.Event] {
	iter, gen := adk.NewAsyncIteratorPair[*contractx.Event]()
	go func() {
		defer gen.Close()

		answer, err := a.loop(ctx, catalog, prompt, gen)
		if err != nil {
			gen.Send(contractx.ErrorEvent(err))
			return
		}
		gen.Send(&contractx.Event{Kind: contractx.EventDone, Text: answer})
	}()
	return iter
}

type run struct {
	catalog *toolx.Catalog
	rules   []Rule
	remote  []string
	pending map[string]bool
}

func (r *run) triggers(rule Rule) []string {
	if rule.ForceAfterRemote {
		return append(slices.Clone(rule.ForceAfter), r.remote...)
	}
	return rule.ForceAfter
}

// forced returns the tool the model must call at step, or "".
func (r *run) forced(step int) string {
	for _, rule := range r.rules {
		if _, ok := r.catalog.Info(rule.Tool); !ok {
			continue
		}
		if rule.ForceAtStep == step || r.pending[rule.Tool] {
			return rule.Tool
		}
	}
	return ""
}

func (r *run) record(tool string) {
	for _, rule := range r.rules {
		if rule.Tool == tool {
			r.pending[rule.Tool] = false
			continue
		}
		if slices.Contains(r.triggers(rule), tool) {
			r.pending[rule.Tool] = true
		}
	}
}

func (a *Agent) loop(
	ctx context.Context,
	catalog *toolx.Catalog,
	prompt string,
	gen *adk.AsyncGenerator[*contractx.Event],
) (string, error) {
	if catalog == nil {
		return "", fmt.Errorf("%w: tool catalog is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", contractx.ErrValidation)
	}

	r := &run{
		catalog: catalog,
		rules:   a.rules,
		remote:  catalog.Remote(),
		pending: make(map[string]bool),
	}

	msgs := make([]*schema.Message, 0, 8)
	if a.system != "" {
		msgs = append(msgs, schema.SystemMessage(a.system))
	}
	msgs = append(msgs, schema.UserMessage(prompt))

	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		forced := r.forced(step)
		opts := a.stepOptions(catalog, forced)

		log.Ctx(ctx).Debug().
			Int("step", step).
			Str("forced", forced).
			Msg("requirement agent step")

		msg, err := a.generate(ctx, msgs, opts, forced == "", gen)
		if err != nil {
			return "", err
		}

		if len(msg.ToolCalls) == 0 {
			if forced != "" {
				return "", fmt.Errorf("%w: step %d must call %s", contractx.ErrRequirement, step, forced)
			}
			answer := strings.TrimSpace(msg.Content)
			if answer == "" {
				return "", fmt.Errorf("%w: empty final answer", contractx.ErrSchemaViolation)
			}
			return answer, nil
		}

		if forced != "" && !calls(msg.ToolCalls, forced) {
			return "", fmt.Errorf("%w: step %d called %s instead of %s",
				contractx.ErrRequirement, step, msg.ToolCalls[0].Function.Name, forced)
		}

		msgs = append(msgs, schema.AssistantMessage(msg.Content, msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			res, err := a.execute(ctx, catalog, call, gen)
			if err != nil {
				return "", err
			}
			r.record(call.Function.Name)
			msgs = append(msgs, schema.ToolMessage(toolContent(res), call.ID))
		}
	}

	return "", fmt.Errorf("%w: no final answer after %d steps", contractx.ErrRequirement, a.maxSteps)
}

func (a *Agent) stepOptions(catalog *toolx.Catalog, forced string) []einomodel.Option {
	if forced == "" {
		return []einomodel.Option{einomodel.WithTools(catalog.Infos())}
	}
	info, _ := catalog.Info(forced)
	return []einomodel.Option{
		einomodel.WithTools([]*schema.ToolInfo{info}),
		einomodel.WithToolChoice(schema.ToolChoiceForced),
	}
}

// generate streams one model turn. Content is held back until the stream ends
// and is forwarded as delta events only when the turn carries no tool calls,
// so preamble text of a tool-calling turn never reaches the client.
func (a *Agent) generate(
	ctx context.Context,
	msgs []*schema.Message,
	opts []einomodel.Option,
	mayAnswer bool,
	gen *adk.AsyncGenerator[*contractx.Event],
) (*schema.Message, error) {
	stream, err := a.model.Stream(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: stream: %v", contractx.ErrModelInvoke, err)
	}
	defer stream.Close()

	var (
		chunks    []*schema.Message
		pending   []string
		toolCalls bool
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: recv: %v", contractx.ErrModelInvoke, err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if len(chunk.ToolCalls) > 0 {
			toolCalls = true
		}
		if chunk.Content != "" {
			pending = append(pending, chunk.Content)
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}

	if mayAnswer && !toolCalls {
		for _, text := range pending {
			gen.Send(&contractx.Event{Kind: contractx.EventDelta, Text: text})
		}
	}

	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: concat stream: %v", contractx.ErrModelInvoke, err)
	}
	return msg, nil
}

func (a *Agent) execute(
	ctx context.Context,
	catalog *toolx.Catalog,
	call schema.ToolCall,
	gen *adk.AsyncGenerator[*contractx.Event],
) (contractx.ToolResult, error) {
	req := contractx.ToolRequest{CallID: call.ID, Tool: strings.TrimSpace(call.Function.Name)}
	gen.Send(&contractx.Event{Kind: contractx.EventToolCall, ToolCall: &req})

	var res contractx.ToolResult
	args, err := parseArgs(call.Function.Arguments)
	if err != nil {
		res = contractx.ToolResult{CallID: call.ID, Tool: req.Tool, Error: err.Error()}
	} else {
		req.Args = args
		res, err = catalog.Execute(ctx, req)
		if err != nil {
			return contractx.ToolResult{}, err
		}
	}

	log.Ctx(ctx).Info().
		Str("tool", req.Tool).
		Bool("failed", res.Error != "").
		Int("artifacts", len(res.Artifacts)).
		Msg("tool executed")

	gen.Send(&contractx.Event{Kind: contractx.EventToolResult, ToolResult: &res})
	return res, nil
}

func parseArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: invalid tool arguments: %v", contractx.ErrSchemaViolation, err)
	}
	return args, nil
}

func toolContent(res contractx.ToolResult) string {
	var payload any = res.Result
	if res.Error != "" {
		payload = map[string]string{"error": res.Error}
	}
	if s, ok := payload.(string); ok {
		return s
	}
	if payload == nil {
		return "{}"
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"error": "result is not serializable: " + err.Error()})
	}
	return string(raw)
}

func calls(toolCalls []schema.ToolCall, name string) bool {
	for _, c := range toolCalls {
		if c.Function.Name == name {
			return true
		}
	}
	return false
}
