// Package server exposes the agent over HTTP: an agent card, a streaming
// message endpoint, form answers, stored conversations and generated files.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/flight-search-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	"github.com/tanpawarit/flight-search-agent/pkg/filestore"
)

const defaultRequestTimeout = 10 * time.Minute

// Runner handles one conversational request.
type Runner interface {
	Run(ctx context.Context, req orchestratorx.Request) *adk.AsyncIterator[*contractx.Event]
}

// FileSource serves files produced by the memory file store.
type FileSource interface {
	Get(ctx context.Context, id string) (filestore.File, []byte, error)
}

type Option func(*Server)

func WithFiles(files FileSource) Option {
	return func(s *Server) {
		s.files = files
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Server) {
		if newID != nil {
			s.newID = newID
		}
	}
}

type Server struct {
	runner  Runner
	history contractx.History
	files   FileSource
	card    AgentCard
	forms   *pendingForms
	timeout time.Duration
	newID   func() string

	router *mux.Router
}

func New(runner Runner, history contractx.History, card AgentCard, opts ...Option) (*Server, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if history == nil {
		return nil, errors.New("history is required")
	}

	s := &Server{
		runner:  runner,
		history: history,
		card:    card,
		forms:   newPendingForms(),
		timeout: defaultRequestTimeout,
		newID:   newXID,
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/.well-known/agent.json", s.agentCard).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthCheck).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/messages", s.sendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/tasks/{task_id}/forms/{form_id}", s.answerForm).Methods(http.MethodPost)
	v1.HandleFunc("/contexts/{context_id}", s.getContext).Methods(http.MethodGet)

	if s.files != nil {
		s.router.HandleFunc("/files/{id}", s.getFile).Methods(http.MethodGet)
	}
}

func (s *Server) agentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
