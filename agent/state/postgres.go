package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

type PostgresConfig struct {
	DSN     string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations"`

	ContextID string              `bun:"context_id,pk"`
	Messages  []contractx.Message `bun:"messages,type:jsonb,notnull"`
	UpdatedAt time.Time           `bun:"updated_at,notnull"`
}

func (r *conversationRow) conversation() *Conversation {
	msgs := r.Messages
	if msgs == nil {
		msgs = []contractx.Message{}
	}
	return &Conversation{ContextID: r.ContextID, Messages: msgs, UpdatedAt: r.UpdatedAt.UTC()}
}

func rowOf(conv *Conversation) *conversationRow {
	updatedAt := conv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return &conversationRow{
		ContextID: conv.ContextID,
		Messages:  conv.Messages,
		UpdatedAt: updatedAt.UTC(),
	}
}

// PostgresStore keeps one jsonb row per context.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*conversationRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, contextID string) (*Conversation, error) {
	if strings.TrimSpace(contextID) == "" {
		return nil, ErrInvalidContext
	}

	row := new(conversationRow)
	err := s.db.NewSelect().
		Model(row).
		Where("context_id = ?", contextID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	return row.conversation(), nil
}

func (s *PostgresStore) Save(ctx context.Context, conv *Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}

	_, err := s.db.NewInsert().
		Model(rowOf(conv)).
		On("CONFLICT (context_id) DO UPDATE").
		Set("messages = EXCLUDED.messages").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, contextID string) error {
	if strings.TrimSpace(contextID) == "" {
		return ErrInvalidContext
	}
	_, err := s.db.NewDelete().
		Model((*conversationRow)(nil)).
		Where("context_id = ?", contextID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
