package server

import (
	"context"
	"sync"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

type formKey struct {
	taskID string
	formID string
}

// pendingForms holds forms sent to clients until they are answered.
type pendingForms struct {
	mu      sync.Mutex
	waiting map[formKey]chan contractx.FormResponse
}

func newPendingForms() *pendingForms {
	return &pendingForms{waiting: make(map[formKey]chan contractx.FormResponse)}
}

func (p *pendingForms) register(taskID, formID string) chan contractx.FormResponse {
	ch := make(chan contractx.FormResponse, 1)
	p.mu.Lock()
	p.waiting[formKey{taskID: taskID, formID: formID}] = ch
	p.mu.Unlock()
	return ch
}

func (p *pendingForms) remove(taskID, formID string) {
	p.mu.Lock()
	delete(p.waiting, formKey{taskID: taskID, formID: formID})
	p.mu.Unlock()
}

// resolve delivers an answer; false means no such form is waiting.
func (p *pendingForms) resolve(taskID, formID string, resp contractx.FormResponse) bool {
	key := formKey{taskID: taskID, formID: formID}
	p.mu.Lock()
	ch, ok := p.waiting[key]
	delete(p.waiting, key)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// requester sends each form over the task stream and waits for its answer.
func (s *Server) requester(taskID, contextID string, stream *eventStream) contractx.FormRequester {
	return contractx.FormRequesterFunc(func(ctx context.Context, form contractx.FormRender) (contractx.FormResponse, error) {
		formID := s.newID()
		answer := s.forms.register(taskID, formID)
		defer s.forms.remove(taskID, formID)

		if err := stream.send(&contractx.Event{
			Kind:      contractx.EventForm,
			TaskID:    taskID,
			ContextID: contextID,
			Form:      &contractx.FormRequest{ID: formID, Form: form},
		}); err != nil {
			return contractx.FormResponse{}, err
		}

		select {
		case resp := <-answer:
			return resp, nil
		case <-ctx.Done():
			return contractx.FormResponse{}, ctx.Err()
		}
	})
}
