package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// Tool pairs a model-facing definition with its executor. Remote marks tools
// served by the flight search endpoint.
type Tool struct {
	Info    *schema.ToolInfo
	Execute Executor
	Remote  bool
}

// Toolset is a group of remote tools bound to an open connection.
type Toolset interface {
	Tools() []Tool
	Close() error
}

// Provider opens a Toolset for one request.
type Provider interface {
	Connect(ctx context.Context) (Toolset, error)
}

// Catalog is built per request and is not safe for concurrent registration.
type Catalog struct {
	order []string
	tools map[string]Tool
}

func NewCatalog(tools ...Tool) (*Catalog, error) {
	c := &Catalog{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := c.Register(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) Register(t Tool) error {
	if t.Info == nil || strings.TrimSpace(t.Info.Name) == "" {
		return fmt.Errorf("%w: tool name is required", contractx.ErrValidation)
	}
	if t.Execute == nil {
		return fmt.Errorf("%w: tool=%s has no executor", contractx.ErrValidation, t.Info.Name)
	}
	if _, ok := c.tools[t.Info.Name]; ok {
		return fmt.Errorf("%w: tool=%s registered twice", contractx.ErrValidation, t.Info.Name)
	}
	c.order = append(c.order, t.Info.Name)
	c.tools[t.Info.Name] = t
	return nil
}

func (c *Catalog) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(c.order))
	for _, name := range c.order {
		infos = append(infos, c.tools[name].Info)
	}
	return infos
}

func (c *Catalog) Info(name string) (*schema.ToolInfo, bool) {
	t, ok := c.tools[name]
	if !ok {
		return nil, false
	}
	return t.Info, true
}

// Remote lists the names of remote tools in registration order.
func (c *Catalog) Remote() []string {
	var names []string
	for _, name := range c.order {
		if c.tools[name].Remote {
			names = append(names, name)
		}
	}
	return names
}

// Execute runs one tool call. Unknown tools and executor failures come back
// as a result with Error set so the model can react; only a cancelled ctx is
// returned as an error.
func (c *Catalog) Execute(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	t, ok := c.tools[req.Tool]
	if !ok {
		out, err := DefaultExecutor()(ctx, req.Tool, req.Args)
		out.CallID = req.CallID
		return out, err
	}

	out, err := t.Execute(ctx, req.Tool, req.Args)
	out.CallID = req.CallID
	out.Tool = req.Tool
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return out, err
	}

	log.Ctx(ctx).Warn().
		Err(err).
		Str("tool", req.Tool).
		Msg("tool execution failed")

	out.Error = err.Error()
	return out, nil
}

func DefaultExecutor() Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("%s: tool=%s", contractx.ErrToolUnavailable, tool),
		}, nil
	}
}
