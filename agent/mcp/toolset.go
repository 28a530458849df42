// Package mcp exposes the tools of a remote flight search server over the
// Model Context Protocol as catalog tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	toolx "github.com/tanpawarit/flight-search-agent/agent/tool"
)

type Config struct {
	URL        string        `split_words:"true" default:"https://mcp.kiwi.com"`
	Timeout    time.Duration `split_words:"true" default:"120s"`
	ClientName string        `split_words:"true" default:"flight-search-agent"`
}

type Option func(*Provider)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// Provider connects to the search server once per request.
type Provider struct {
	url        string
	httpClient *http.Client
	impl       *mcpsdk.Implementation
}

var _ toolx.Provider = (*Provider)(nil)

func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("mcp url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	name := strings.TrimSpace(cfg.ClientName)
	if name == "" {
		name = "flight-search-agent"
	}

	p := &Provider{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		impl:       &mcpsdk.Implementation{Name: name, Version: "v1.0.0"},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *Provider) Connect(ctx context.Context) (toolx.Toolset, error) {
	client := mcpsdk.NewClient(p.impl, nil)
	session, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{
		Endpoint:   p.url,
		HTTPClient: p.httpClient,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", contractx.ErrToolUnavailable, p.url, err)
	}

	remote, err := listTools(ctx, session)
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("%w: list tools: %v", contractx.ErrToolUnavailable, err)
	}

	ts := &Toolset{session: session, tools: make([]toolx.Tool, 0, len(remote))}
	for _, t := range remote {
		ts.tools = append(ts.tools, toolx.Tool{
			Info:    toolInfo(ctx, t),
			Execute: ts.call,
			Remote:  true,
		})
	}

	log.Ctx(ctx).Debug().
		Str("url", p.url).
		Int("tools", len(ts.tools)).
		Msg("mcp toolset connected")
	return ts, nil
}

func listTools(ctx context.Context, session *mcpsdk.ClientSession) ([]*mcpsdk.Tool, error) {
	var (
		out    []*mcpsdk.Tool
		cursor string
	)
	for {
		res, err := session.ListTools(ctx, &mcpsdk.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Tools...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

// Toolset holds one open session; Close ends it.
type Toolset struct {
	session *mcpsdk.ClientSession
	tools   []toolx.Tool
}

func (t *Toolset) Tools() []toolx.Tool {
	return t.tools
}

func (t *Toolset) Close() error {
	return t.session.Close()
}

func (t *Toolset) call(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	res, err := t.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("call %s: %w", tool, err)
	}

	text := strings.Join(flattenContent(res.Content), "\n")
	if res.IsError {
		if text == "" {
			text = "remote tool failed"
		}
		return contractx.ToolResult{Tool: tool, Error: text}, nil
	}
	if text == "" && res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return contractx.ToolResult{}, fmt.Errorf("encode %s result: %w", tool, err)
		}
		text = string(raw)
	}
	return contractx.ToolResult{Tool: tool, Result: text}, nil
}

func flattenContent(content []mcpsdk.Content) []string {
	texts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *mcpsdk.TextContent:
			if v.Text != "" {
				texts = append(texts, v.Text)
			}
		case *mcpsdk.EmbeddedResource:
			if v.Resource != nil && v.Resource.Text != "" {
				texts = append(texts, v.Resource.Text)
			}
		}
	}
	return texts
}

// toolInfo converts the server's JSON schema into eino parameters. Schemas
// that do not fit OpenAPI 3 fall back to a free-form object.
func toolInfo(ctx context.Context, t *mcpsdk.Tool) *schema.ToolInfo {
	info := &schema.ToolInfo{Name: t.Name, Desc: t.Description}

	s, err := inputSchema(t.InputSchema)
	if err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("tool", t.Name).
			Msg("mcp tool schema not usable, accepting any object")
		s = &openapi3.Schema{Type: openapi3.TypeObject}
	}
	info.ParamsOneOf = schema.NewParamsOneOfByOpenAPIV3(s)
	return info
}

func inputSchema(raw any) (*openapi3.Schema, error) {
	if raw == nil {
		return &openapi3.Schema{Type: openapi3.TypeObject}, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	var s openapi3.Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	if s.Type == "" {
		s.Type = openapi3.TypeObject
	}
	return &s, nil
}
