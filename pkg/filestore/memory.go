package filestore

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxFiles = 256
	DefaultFileTTL  = 24 * time.Hour
)

// MemoryStore keeps at most maxFiles files for at most ttl each. The oldest
// file is evicted first when the store is full.
type MemoryStore struct {
	baseURL  string
	now      func() time.Time
	maxFiles int
	ttl      time.Duration

	mu    sync.RWMutex
	files map[string]memoryFile
	order []string
}

type memoryFile struct {
	meta File
	data []byte
}

var _ Store = (*MemoryStore)(nil)

type MemoryOption func(*MemoryStore)

// WithMaxFiles caps the number of stored files. n <= 0 keeps the default.
func WithMaxFiles(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxFiles = n
		}
	}
}

// WithFileTTL sets how long a file stays downloadable. ttl <= 0 keeps the
// default.
func WithFileTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore links files as <baseURL>/files/<id>.
func NewMemoryStore(baseURL string, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		now:      time.Now,
		maxFiles: DefaultMaxFiles,
		ttl:      DefaultFileTTL,
		files:    make(map[string]memoryFile),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Put(ctx context.Context, name string, mimeType string, data []byte) (File, error) {
	now := s.now()
	f, err := newFile(name, mimeType, data, now)
	if err != nil {
		return File{}, err
	}
	f.URI = s.baseURL + "/files/" + f.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked(now)
	for len(s.order) >= s.maxFiles {
		s.dropOldestLocked()
	}
	s.files[f.ID] = memoryFile{meta: f, data: append([]byte(nil), data...)}
	s.order = append(s.order, f.ID)
	return f, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (File, []byte, error) {
	s.mu.RLock()
	f, ok := s.files[id]
	s.mu.RUnlock()
	if !ok || s.expired(f.meta, s.now()) {
		return File{}, nil, ErrNotFound
	}
	return f.meta, f.data, nil
}

// Len reports the number of files currently held, expired ones included
// until the next Put.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func (s *MemoryStore) expired(f File, now time.Time) bool {
	return now.Sub(f.CreatedAt) >= s.ttl
}

// evictLocked drops expired files. order is oldest first, so it stops at the
// first live one.
func (s *MemoryStore) evictLocked(now time.Time) {
	for len(s.order) > 0 {
		f, ok := s.files[s.order[0]]
		if ok && !s.expired(f.meta, now) {
			return
		}
		s.dropOldestLocked()
	}
}

func (s *MemoryStore) dropOldestLocked() {
	delete(s.files, s.order[0])
	s.order[0] = ""
	s.order = s.order[1:]
}
