package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

type Config struct {
	Backend  string        `split_words:"true" default:"memory"`
	TTL      time.Duration `split_words:"true" default:"168h"`
	Upstash  UpstashConfig
	Postgres PostgresConfig
}

// Open returns the configured backend and a close function.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemoryStore(), noop, nil
	case "upstash":
		s, err := NewUpstashStore(cfg.Upstash, WithTTL(cfg.TTL))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: history upstash: %v", contractx.ErrValidation, err)
		}
		return s, noop, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown history backend %q", contractx.ErrValidation, cfg.Backend)
	}
}
