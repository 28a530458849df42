package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/flight-search-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	statex "github.com/tanpawarit/flight-search-agent/agent/state"
	"github.com/tanpawarit/flight-search-agent/pkg/filestore"
)

const maxRequestBodyByte = 1 << 20

func newXID() string {
	return xid.New().String()
}

// SendMessageRequest accepts either full message parts or a plain text.
type SendMessageRequest struct {
	ContextID string            `json:"context_id,omitempty"`
	Text      string            `json:"text,omitempty"`
	Message   contractx.Message `json:"message"`
}

type eventStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *eventStream) send(ev *contractx.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	e.flusher.Flush()
	return nil
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyByte)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg := req.Message
	if len(msg.Parts) == 0 && strings.TrimSpace(req.Text) != "" {
		msg.Parts = []contractx.Part{contractx.TextPart(req.Text)}
	}
	if strings.TrimSpace(msg.Text()) == "" {
		writeError(w, http.StatusBadRequest, "message text is required")
		return
	}

	contextID := strings.TrimSpace(req.ContextID)
	if contextID == "" {
		contextID = strings.TrimSpace(msg.ContextID)
	}
	if contextID == "" {
		contextID = s.newID()
	}
	taskID := s.newID()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	stream := &eventStream{w: w, flusher: flusher}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	logger := log.With().Str("task_id", taskID).Str("context_id", contextID).Logger()
	logger.Info().Msg("task started")

	if err := stream.send(&contractx.Event{Kind: contractx.EventTask, TaskID: taskID, ContextID: contextID}); err != nil {
		logger.Warn().Err(err).Msg("client gone before task started")
		return
	}

	events := s.runner.Run(ctx, orchestratorx.Request{
		TaskID:    taskID,
		ContextID: contextID,
		Message:   msg,
		Forms:     s.requester(taskID, contextID, stream),
	})
	for {
		ev, ok := events.Next()
		if !ok {
			return
		}
		if err := stream.send(ev); err != nil {
			// Stop waiting on forms and tools; the client cannot see them.
			cancel()
			logger.Warn().Err(err).Msg("stream write failed")
		}
	}
}

func (s *Server) answerForm(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var resp contractx.FormResponse
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyByte)).Decode(&resp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form response")
		return
	}
	if resp.Values == nil {
		resp.Values = map[string]any{}
	}
	if !s.forms.resolve(vars["task_id"], vars["form_id"], resp) {
		writeError(w, http.StatusNotFound, "form not pending")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type contextResponse struct {
	ContextID string              `json:"context_id"`
	Messages  []contractx.Message `json:"messages"`
}

func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	contextID := mux.Vars(r)["context_id"]
	msgs, err := s.history.Messages(r.Context(), contextID)
	if errors.Is(err, statex.ErrStateNotFound) {
		writeError(w, http.StatusNotFound, "context not found")
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("context_id", contextID).Msg("load context")
		writeError(w, http.StatusInternalServerError, "load context failed")
		return
	}
	writeJSON(w, http.StatusOK, contextResponse{ContextID: contextID, Messages: msgs})
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	f, data, err := s.files.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, filestore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load file failed")
		return
	}
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
