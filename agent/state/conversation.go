package state

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

// Conversation is the message history of one context.
type Conversation struct {
	ContextID string              `json:"context_id"`
	Messages  []contractx.Message `json:"messages"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func NewConversation(contextID string, now time.Time) *Conversation {
	return &Conversation{
		ContextID: contextID,
		Messages:  []contractx.Message{},
		UpdatedAt: now.UTC(),
	}
}

func (c *Conversation) Validate() error {
	if c == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(c.ContextID) == "" {
		return ErrInvalidContext
	}
	for i, m := range c.Messages {
		if m.ContextID != "" && m.ContextID != c.ContextID {
			return fmt.Errorf("%w: message %d belongs to context %q", contractx.ErrValidation, i, m.ContextID)
		}
	}
	return nil
}

// Append adds msg, stamping the conversation's context on it.
func (c *Conversation) Append(msg contractx.Message, now time.Time) {
	msg.ContextID = c.ContextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now.UTC()
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = now.UTC()
}
