package state

import (
	"context"
	"errors"
)

var (
	ErrStateNotFound   = errors.New("conversation not found")
	ErrNilConversation = errors.New("conversation is nil")
	ErrInvalidContext  = errors.New("context id is empty")
)

// Store keeps one Conversation per context id. Load returns ErrStateNotFound
// for an unknown id and ErrInvalidContext for a blank one.
type Store interface {
	Load(ctx context.Context, contextID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, contextID string) error
}
