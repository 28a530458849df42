// Package filestore persists rendered buffers and returns URIs that can be
// placed into outgoing message parts.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("file not found")

type Config struct {
	Backend string `split_words:"true" default:"memory"`
	// PublicURL prefixes memory-backed file links; defaults to the server address.
	PublicURL string `split_words:"true"`
	// MaxFiles and FileTTL bound the memory backend.
	MaxFiles int           `split_words:"true" default:"256"`
	FileTTL  time.Duration `split_words:"true" default:"24h"`
	S3       S3Config
}

type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Size      int       `json:"size"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, name string, mimeType string, data []byte) (File, error)
}

// Open returns the configured backend. baseURL is used for memory links
// when cfg.PublicURL is empty.
func Open(cfg Config, baseURL string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		public := strings.TrimSpace(cfg.PublicURL)
		if public == "" {
			public = baseURL
		}
		return NewMemoryStore(public, WithMaxFiles(cfg.MaxFiles), WithFileTTL(cfg.FileTTL)), nil
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown file backend %q", cfg.Backend)
	}
}

func newFile(name, mimeType string, data []byte, now time.Time) (File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return File{}, errors.New("file name is required")
	}
	if len(data) == 0 {
		return File{}, errors.New("file is empty")
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	return File{
		ID:        uuid.NewString(),
		Name:      name,
		MimeType:  mimeType,
		Size:      len(data),
		CreatedAt: now.UTC(),
	}, nil
}

// Uploader adapts a Store to the message layer.
type Uploader struct {
	store Store
}

func NewUploader(store Store) *Uploader {
	return &Uploader{store: store}
}

func (u *Uploader) Upload(ctx context.Context, name string, mimeType string, data []byte) (string, error) {
	f, err := u.store.Put(ctx, name, mimeType, data)
	if err != nil {
		return "", err
	}
	return f.URI, nil
}
