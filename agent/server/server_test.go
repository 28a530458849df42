package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/adk"

	orchestratorx "github.com/tanpawarit/flight-search-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	statex "github.com/tanpawarit/flight-search-agent/agent/state"
	"github.com/tanpawarit/flight-search-agent/pkg/filestore"
)

// formRunner asks one form and answers with the collected destination.
type formRunner struct {
	requests chan orchestratorx.Request
}

func (f *formRunner) Run(ctx context.Context, req orchestratorx.Request) *adk.AsyncIterator[*contractx.Event] {
	f.requests <- req
	iter, gen := adk.NewAsyncIteratorPair[*contractx.Event]()
	go func() {
		defer gen.Close()
		resp, err := req.Forms.RequestForm(ctx, contractx.FormRender{
			Title:  "Trip details",
			Fields: []contractx.FormField{{Name: "destination", Required: true}},
		})
		if err != nil {
			gen.Send(contractx.ErrorEvent(err))
			return
		}
		gen.Send(&contractx.Event{Kind: contractx.EventDelta, TaskID: req.TaskID, Text: "Flying to "})
		gen.Send(&contractx.Event{
			Kind:   contractx.EventDone,
			TaskID: req.TaskID,
			Text:   fmt.Sprintf("Flying to %v", resp.Values["destination"]),
		})
	}()
	return iter
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

func newTestServer(t *testing.T, runner Runner, history contractx.History, opts ...Option) *httptest.Server {
	t.Helper()

	opts = append(opts, WithIDGenerator(sequentialIDs()))
	s, err := New(runner, history, DefaultCard("http://agent.test/", "test"), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type sseEvent struct {
	name  string
	event contractx.Event
}

func readEvents(t *testing.T, scanner *bufio.Scanner, onEvent func(sseEvent)) {
	t.Helper()

	var name string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var ev contractx.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			onEvent(sseEvent{name: name, event: ev})
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}
}

func TestSendMessageStreamsEventsAndAnswersForms(t *testing.T) {
	t.Parallel()

	runner := &formRunner{requests: make(chan orchestratorx.Request, 1)}
	ts := newTestServer(t, runner, statex.NewHistory(statex.NewMemoryStore()))

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", strings.NewReader(`{"text":"find me a flight"}`))
	if err != nil {
		t.Fatalf("POST /v1/messages error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var kinds []contractx.EventKind
	var done contractx.Event
	readEvents(t, bufio.NewScanner(resp.Body), func(e sseEvent) {
		if string(e.event.Kind) != e.name {
			t.Fatalf("event name %q does not match kind %q", e.name, e.event.Kind)
		}
		kinds = append(kinds, e.event.Kind)
		switch e.event.Kind {
		case contractx.EventForm:
			url := fmt.Sprintf("%s/v1/tasks/%s/forms/%s", ts.URL, e.event.TaskID, e.event.Form.ID)
			answer, err := http.Post(url, "application/json", strings.NewReader(`{"values":{"destination":"LAS"}}`))
			if err != nil {
				t.Fatalf("POST form error = %v", err)
			}
			answer.Body.Close()
			if answer.StatusCode != http.StatusAccepted {
				t.Fatalf("form status = %d, want 202", answer.StatusCode)
			}
		case contractx.EventDone:
			done = e.event
		}
	})

	want := []contractx.EventKind{contractx.EventTask, contractx.EventForm, contractx.EventDelta, contractx.EventDone}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
	if done.Text != "Flying to LAS" {
		t.Fatalf("done text = %q", done.Text)
	}

	req := <-runner.requests
	if req.TaskID == "" || req.ContextID == "" || req.TaskID == req.ContextID {
		t.Fatalf("request ids = %q/%q", req.TaskID, req.ContextID)
	}
	if req.Message.Text() != "find me a flight" {
		t.Fatalf("message text = %q", req.Message.Text())
	}
}

func TestSendMessageKeepsContextID(t *testing.T) {
	t.Parallel()

	runner := &formRunner{requests: make(chan orchestratorx.Request, 1)}
	ts := newTestServer(t, runner, statex.NewHistory(statex.NewMemoryStore()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	body := `{"context_id":"trip-42","message":{"parts":[{"kind":"text","text":"PRG to LAS"}]}}`
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/v1/messages", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /v1/messages error = %v", err)
	}
	defer resp.Body.Close()

	got := <-runner.requests
	if got.ContextID != "trip-42" {
		t.Fatalf("context id = %q, want trip-42", got.ContextID)
	}
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &formRunner{requests: make(chan orchestratorx.Request, 1)}, statex.NewHistory(statex.NewMemoryStore()))

	for _, body := range []string{`{}`, `{"text":"   "}`, `not json`} {
		resp, err := http.Post(ts.URL+"/v1/messages", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST /v1/messages error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestAnswerUnknownForm(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &formRunner{}, statex.NewHistory(statex.NewMemoryStore()))

	resp, err := http.Post(ts.URL+"/v1/tasks/t1/forms/f1", "application/json", strings.NewReader(`{"values":{}}`))
	if err != nil {
		t.Fatalf("POST form error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetContext(t *testing.T) {
	t.Parallel()

	history := statex.NewHistory(statex.NewMemoryStore())
	msg := contractx.Message{ID: "m1", ContextID: "c1", Role: contractx.RoleUser, Parts: []contractx.Part{contractx.TextPart("hi")}}
	if err := history.Append(context.Background(), msg); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	ts := newTestServer(t, &formRunner{}, history)

	resp, err := http.Get(ts.URL + "/v1/contexts/c1")
	if err != nil {
		t.Fatalf("GET context error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got contextResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode context: %v", err)
	}
	if got.ContextID != "c1" || len(got.Messages) != 1 || got.Messages[0].Text() != "hi" {
		t.Fatalf("context = %+v", got)
	}

	missing, err := http.Get(ts.URL + "/v1/contexts/nope")
	if err != nil {
		t.Fatalf("GET context error = %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", missing.StatusCode)
	}
}

func TestGetFile(t *testing.T) {
	t.Parallel()

	files := filestore.NewMemoryStore("http://agent.test")
	f, err := files.Put(context.Background(), "flights.html", "text/html", []byte("<html></html>"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	ts := newTestServer(t, &formRunner{}, statex.NewHistory(statex.NewMemoryStore()), WithFiles(files))

	resp, err := http.Get(ts.URL + "/files/" + f.ID)
	if err != nil {
		t.Fatalf("GET file error = %v", err)
	}
	defer resp.Body.Close()
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read file: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body.String() != "<html></html>" {
		t.Fatalf("file = %d %q", resp.StatusCode, body.String())
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html" {
		t.Fatalf("Content-Type = %q", ct)
	}

	missing, err := http.Get(ts.URL + "/files/nope")
	if err != nil {
		t.Fatalf("GET file error = %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", missing.StatusCode)
	}
}

func TestAgentCardAndHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &formRunner{}, statex.NewHistory(statex.NewMemoryStore()))

	resp, err := http.Get(ts.URL + "/.well-known/agent.json")
	if err != nil {
		t.Fatalf("GET card error = %v", err)
	}
	defer resp.Body.Close()
	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		t.Fatalf("decode card: %v", err)
	}
	if card.URL != "http://agent.test" || !card.Capabilities.Streaming || len(card.Skills) != 1 {
		t.Fatalf("card = %+v", card)
	}

	health, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz error = %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", health.StatusCode)
	}
}
