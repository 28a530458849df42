package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidContext = errors.New("context id is empty")
	ErrInvalidTask    = errors.New("task id is empty")
)

type GraphInput struct {
	TaskID    string
	ContextID string
	Message   contractx.Message
}

type GraphState struct {
	TaskID    string
	ContextID string
	Now       time.Time

	Message contractx.Message
	Prompt  string
}

// ValidateRequest normalizes the incoming user message. newID fills a
// missing message id.
func ValidateRequest(in GraphInput, nowFn func() time.Time, newID func() string) (*GraphState, error) {
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return nil, ErrInvalidTask
	}
	contextID := strings.TrimSpace(in.ContextID)
	if contextID == "" {
		return nil, ErrInvalidContext
	}
	if strings.TrimSpace(in.Message.Text()) == "" {
		return nil, ErrInvalidMessage
	}

	now := nowFn().UTC()
	msg := in.Message
	msg.ContextID = contextID
	msg.TaskID = taskID
	msg.Role = contractx.RoleUser
	if strings.TrimSpace(msg.ID) == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	return &GraphState{
		TaskID:    taskID,
		ContextID: contextID,
		Now:       now,
		Message:   msg,
	}, nil
}
