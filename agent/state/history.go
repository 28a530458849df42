package state

import (
	"context"
	"errors"
	"sync"
	"time"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

// History appends messages to stored conversations. Appends to the same
// context are serialized within the process.
type History struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*contextLock
}

// contextLock is dropped from History.locks once no caller holds or waits
// for it.
type contextLock struct {
	sync.Mutex
	refs int
}

var _ contractx.History = (*History)(nil)

func NewHistory(store Store) *History {
	return &History{
		store: store,
		now:   time.Now,
		locks: make(map[string]*contextLock),
	}
}

func (h *History) lock(contextID string) func() {
	h.mu.Lock()
	l, ok := h.locks[contextID]
	if !ok {
		l = &contextLock{}
		h.locks[contextID] = l
	}
	l.refs++
	h.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		h.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(h.locks, contextID)
		}
		h.mu.Unlock()
	}
}

func (h *History) Append(ctx context.Context, msg contractx.Message) error {
	unlock := h.lock(msg.ContextID)
	defer unlock()

	now := h.now()
	conv, err := h.store.Load(ctx, msg.ContextID)
	if errors.Is(err, ErrStateNotFound) {
		conv = NewConversation(msg.ContextID, now)
	} else if err != nil {
		return err
	}

	conv.Append(msg, now)
	return h.store.Save(ctx, conv)
}

func (h *History) Messages(ctx context.Context, contextID string) ([]contractx.Message, error) {
	conv, err := h.store.Load(ctx, contextID)
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}
