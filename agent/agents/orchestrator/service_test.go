package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	statex "github.com/tanpawarit/flight-search-agent/agent/state"
	toolx "github.com/tanpawarit/flight-search-agent/agent/tool"
)

type step struct {
	call  *contractx.ToolRequest
	delta string
}

// scriptedAgent executes a fixed sequence of tool calls against the catalog
// it receives and then answers.
type scriptedAgent struct {
	steps  []step
	answer string
	err    error

	mu     sync.Mutex
	prompt string
	tools  []string
}

func (a *scriptedAgent) Run(ctx context.Context, catalog *toolx.Catalog, prompt string) *adk.AsyncIterator[*contractx.Event] {
	a.mu.Lock()
	a.prompt = prompt
	for _, info := range catalog.Infos() {
		a.tools = append(a.tools, info.Name)
	}
	a.mu.Unlock()

	iter, gen := adk.NewAsyncIteratorPair[*contractx.Event]()
	go func() {
		defer gen.Close()
		for _, s := range a.steps {
			if s.delta != "" {
				gen.Send(&contractx.Event{Kind: contractx.EventDelta, Text: s.delta})
				continue
			}
			gen.Send(&contractx.Event{Kind: contractx.EventToolCall, ToolCall: s.call})
			res, err := catalog.Execute(ctx, *s.call)
			if err != nil {
				gen.Send(contractx.ErrorEvent(err))
				return
			}
			gen.Send(&contractx.Event{Kind: contractx.EventToolResult, ToolResult: &res})
		}
		if a.err != nil {
			gen.Send(contractx.ErrorEvent(a.err))
			return
		}
		gen.Send(&contractx.Event{Kind: contractx.EventDone, Text: a.answer})
	}()
	return iter
}

type fakeVisualizer struct {
	err error
}

func (f *fakeVisualizer) Visualize(ctx context.Context, flights [][]string) (contractx.Visualization, error) {
	if f.err != nil {
		return contractx.Visualization{}, f.err
	}
	return contractx.Visualization{
		Segments:    len(flights),
		Airports:    2,
		StaticPNG:   []byte("png-bytes"),
		Interactive: []byte("<html></html>"),
	}, nil
}

type fakeUploader struct {
	err   error
	names []string
}

func (f *fakeUploader) Upload(ctx context.Context, name string, mimeType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	return "http://files.test/files/" + name, nil
}

type fakeToolset struct {
	closed bool
}

func (f *fakeToolset) Tools() []toolx.Tool {
	return []toolx.Tool{{
		Info:   &schema.ToolInfo{Name: "search-flight", Desc: "search"},
		Remote: true,
		Execute: func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
			return contractx.ToolResult{Tool: tool, Result: "PRG-LAS: 129 EUR"}, nil
		},
	}}
}

func (f *fakeToolset) Close() error {
	f.closed = true
	return nil
}

type fakeProvider struct {
	toolset *fakeToolset
	err     error
}

func (f *fakeProvider) Connect(ctx context.Context) (toolx.Toolset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.toolset, nil
}

func userMessage(text string) contractx.Message {
	return contractx.Message{Parts: []contractx.Part{contractx.TextPart(text)}}
}

func searchSteps() []step {
	return []step{
		{call: &contractx.ToolRequest{CallID: "c1", Tool: toolx.ToolEnsureAllData, Args: map[string]any{
			"form": map[string]any{
				"title":  "Trip details",
				"fields": []any{map[string]any{"name": "start_date", "type": "date", "required": true}},
			},
		}}},
		{call: &contractx.ToolRequest{CallID: "c2", Tool: "search-flight", Args: map[string]any{"flyFrom": "PRG"}}},
		{call: &contractx.ToolRequest{CallID: "c3", Tool: toolx.ToolVisualizeFlights, Args: map[string]any{
			"flights": []any{[]any{"PRG", "LAS"}},
		}}},
		{delta: "Cheapest "},
		{delta: "flight: 129 EUR"},
	}
}

func collect(iter *adk.AsyncIterator[*contractx.Event]) []*contractx.Event {
	var events []*contractx.Event
	for {
		ev, ok := iter.Next()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func TestRunFullFlow(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{steps: searchSteps(), answer: "Cheapest flight: 129 EUR"}
	history := statex.NewHistory(statex.NewMemoryStore())
	toolset := &fakeToolset{}
	uploader := &fakeUploader{}

	o, err := New(agent, history, &fakeProvider{toolset: toolset}, &fakeVisualizer{}, uploader)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var forms int
	events := collect(o.Run(context.Background(), Request{
		TaskID:    "task-1",
		ContextID: "ctx-1",
		Message:   userMessage("PRG to LAS next Friday"),
		Forms: contractx.FormRequesterFunc(func(ctx context.Context, form contractx.FormRender) (contractx.FormResponse, error) {
			forms++
			return contractx.FormResponse{Values: map[string]any{"start_date": "2025-06-06"}}, nil
		}),
	}))

	if agent.prompt != "Search flights for the user query: PRG to LAS next Friday" {
		t.Fatalf("prompt = %q", agent.prompt)
	}
	if len(agent.tools) != 3 {
		t.Fatalf("catalog tools = %v, want 3", agent.tools)
	}
	if forms != 1 {
		t.Fatalf("form requests = %d, want 1", forms)
	}
	if !toolset.closed {
		t.Fatal("remote toolset was not closed")
	}

	var kinds []contractx.EventKind
	for _, ev := range events {
		if ev.TaskID != "task-1" || ev.ContextID != "ctx-1" {
			t.Fatalf("event %s ids = %q/%q", ev.Kind, ev.TaskID, ev.ContextID)
		}
		kinds = append(kinds, ev.Kind)
	}
	want := []contractx.EventKind{
		contractx.EventToolCall, contractx.EventToolResult,
		contractx.EventToolCall, contractx.EventToolResult,
		contractx.EventToolCall, contractx.EventToolResult,
		contractx.EventDelta, contractx.EventDelta,
		contractx.EventPart, contractx.EventPart,
		contractx.EventDone,
	}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event kinds = %v, want %v", kinds, want)
		}
	}

	png := events[8].Part.File
	if png.Name != contractx.StaticMapName || png.MimeType != contractx.StaticMapMimeType {
		t.Fatalf("png part = %+v", png)
	}
	if png.Bytes != base64.StdEncoding.EncodeToString([]byte("png-bytes")) || png.URI != "" {
		t.Fatalf("png part must be inline bytes, got %+v", png)
	}
	html := events[9].Part.File
	if html.Name != contractx.InteractiveMapName || html.URI != "http://files.test/files/flights.html" || html.Bytes != "" {
		t.Fatalf("html part = %+v", html)
	}

	done := events[10]
	if done.Text != "Cheapest flight: 129 EUR" {
		t.Fatalf("done text = %q", done.Text)
	}
	if done.Message == nil || len(done.Message.Parts) != 3 || done.Message.Role != contractx.RoleAgent {
		t.Fatalf("done message = %+v", done.Message)
	}

	msgs, err := history.Messages(context.Background(), "ctx-1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != contractx.RoleUser || msgs[0].Text() != "PRG to LAS next Friday" || msgs[0].ID == "" {
		t.Fatalf("stored input = %+v", msgs[0])
	}
	if msgs[1].Role != contractx.RoleAgent || msgs[1].Text() != "Cheapest flight: 129 EUR" || len(msgs[1].Parts) != 3 {
		t.Fatalf("stored reply = %+v", msgs[1])
	}
}

func TestRunWithoutVisualizationSendsTextOnly(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{answer: "Where would you like to fly?"}
	uploader := &fakeUploader{}
	o, err := New(agent, statex.NewHistory(statex.NewMemoryStore()), nil, &fakeVisualizer{}, uploader)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	events := collect(o.Run(context.Background(), Request{TaskID: "t", ContextID: "c", Message: userMessage("hi")}))
	if len(events) != 1 || events[0].Kind != contractx.EventDone {
		t.Fatalf("events = %+v, want single done", events)
	}
	if len(events[0].Message.Parts) != 1 {
		t.Fatalf("parts = %+v, want text only", events[0].Message.Parts)
	}
	if len(uploader.names) != 0 {
		t.Fatalf("uploads = %v, want none", uploader.names)
	}
	if len(agent.tools) != 2 {
		t.Fatalf("catalog tools = %v, want local tools only", agent.tools)
	}
}

func TestRunUploadFailureKeepsAnswer(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{steps: searchSteps()[2:3], answer: "Here is the map"}
	o, err := New(agent, statex.NewHistory(statex.NewMemoryStore()), nil, &fakeVisualizer{}, &fakeUploader{err: errors.New("bucket gone")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	events := collect(o.Run(context.Background(), Request{TaskID: "t", ContextID: "c", Message: userMessage("map it")}))
	last := events[len(events)-1]
	if last.Kind != contractx.EventDone {
		t.Fatalf("last event = %s, want done", last.Kind)
	}
	if len(last.Message.Parts) != 2 || last.Message.Parts[1].File.Name != contractx.StaticMapName {
		t.Fatalf("parts = %+v, want text and png", last.Message.Parts)
	}
}

func TestRunRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{answer: "unused"}
	history := statex.NewHistory(statex.NewMemoryStore())
	o, err := New(agent, history, nil, &fakeVisualizer{}, &fakeUploader{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	events := collect(o.Run(context.Background(), Request{TaskID: "t", ContextID: "c", Message: userMessage("  ")}))
	if len(events) != 1 || events[0].Kind != contractx.EventError {
		t.Fatalf("events = %+v, want single error", events)
	}
	if !errors.Is(events[0].Err, ErrInvalidMessage) {
		t.Fatalf("error = %v, want ErrInvalidMessage", events[0].Err)
	}
	if agent.prompt != "" {
		t.Fatal("agent must not run for an invalid message")
	}
	if _, err := history.Messages(context.Background(), "c"); !errors.Is(err, statex.ErrStateNotFound) {
		t.Fatalf("Messages() error = %v, want ErrStateNotFound", err)
	}
}

func TestRunAgentErrorEndsStream(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{err: contractx.ErrRequirement}
	history := statex.NewHistory(statex.NewMemoryStore())
	o, err := New(agent, history, nil, &fakeVisualizer{}, &fakeUploader{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	events := collect(o.Run(context.Background(), Request{TaskID: "t", ContextID: "c", Message: userMessage("hi")}))
	last := events[len(events)-1]
	if last.Kind != contractx.EventError || !errors.Is(last.Err, contractx.ErrRequirement) {
		t.Fatalf("last event = %+v, want requirement error", last)
	}

	msgs, err := history.Messages(context.Background(), "c")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("stored messages = %d, want only the input", len(msgs))
	}
}

func TestRunProviderFailure(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{answer: "unused"}
	provider := &fakeProvider{err: contractx.ErrToolUnavailable}
	o, err := New(agent, statex.NewHistory(statex.NewMemoryStore()), provider, &fakeVisualizer{}, &fakeUploader{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	events := collect(o.Run(context.Background(), Request{TaskID: "t", ContextID: "c", Message: userMessage("hi")}))
	if len(events) != 1 || !errors.Is(events[0].Err, contractx.ErrToolUnavailable) {
		t.Fatalf("events = %+v, want tool unavailable error", events)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	history := statex.NewHistory(statex.NewMemoryStore())
	if _, err := New(nil, history, nil, &fakeVisualizer{}, &fakeUploader{}); err == nil {
		t.Fatal("expected error for nil agent")
	}
	if _, err := New(&scriptedAgent{}, nil, nil, &fakeVisualizer{}, &fakeUploader{}); err == nil {
		t.Fatal("expected error for nil history")
	}
	if _, err := New(&scriptedAgent{}, history, nil, nil, &fakeUploader{}); err == nil {
		t.Fatal("expected error for nil visualizer")
	}
}
