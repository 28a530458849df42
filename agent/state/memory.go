package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore keeps conversations in process. Values are copied in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, contextID string) (*Conversation, error) {
	if strings.TrimSpace(contextID) == "" {
		return nil, ErrInvalidContext
	}

	s.mu.RLock()
	raw, ok := s.convs[contextID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}

	var conv Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *MemoryStore) Save(ctx context.Context, conv *Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	s.mu.Lock()
	s.convs[conv.ContextID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, contextID string) error {
	if strings.TrimSpace(contextID) == "" {
		return ErrInvalidContext
	}
	s.mu.Lock()
	delete(s.convs, contextID)
	s.mu.Unlock()
	return nil
}
