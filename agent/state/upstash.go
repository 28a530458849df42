package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	historyKeyPrefix = "conv:"
	historyKeySuffix = ":agent:history"
	historyTTL       = 7 * 24 * time.Hour
	maxUpstashReply  = 32 << 20
)

type UpstashConfig struct {
	URL     string        `split_words:"true"`
	Token   string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

type UpstashOption func(*UpstashStore)

// WithKeyPrefix replaces the leading "conv:" of history keys.
func WithKeyPrefix(prefix string) UpstashOption {
	return func(s *UpstashStore) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.prefix = p
		}
	}
}

// WithTTL sets the key expiry. Zero keeps conversations forever.
func WithTTL(ttl time.Duration) UpstashOption {
	return func(s *UpstashStore) { s.ttl = ttl }
}

func WithHTTPClient(client *http.Client) UpstashOption {
	return func(s *UpstashStore) {
		if client != nil {
			s.client = client
		}
	}
}

// UpstashStore writes each conversation as one JSON string under
// conv:<context_id>:agent:history using the Upstash REST command endpoint.
type UpstashStore struct {
	endpoint string
	token    string
	client   *http.Client
	prefix   string
	ttl      time.Duration
}

var _ Store = (*UpstashStore)(nil)

func NewUpstashStore(cfg UpstashConfig, opts ...UpstashOption) (*UpstashStore, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if endpoint == "" {
		return nil, errors.New("upstash: url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("upstash: parse url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash: token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &UpstashStore{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		prefix:   historyKeyPrefix,
		ttl:      historyTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.ttl < 0 {
		return nil, fmt.Errorf("upstash: negative ttl %s", s.ttl)
	}
	return s, nil
}

func (s *UpstashStore) Load(ctx context.Context, contextID string) (*Conversation, error) {
	key, err := s.key(contextID)
	if err != nil {
		return nil, err
	}
	reply, err := s.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}

	// GET answers a JSON string holding the conversation, or null.
	var stored *string
	if err := json.Unmarshal(reply, &stored); err != nil {
		return nil, fmt.Errorf("upstash GET %s: result is not a string: %w", key, err)
	}
	if stored == nil {
		return nil, ErrStateNotFound
	}

	conv := &Conversation{}
	if err := json.Unmarshal([]byte(*stored), conv); err != nil {
		return nil, fmt.Errorf("upstash GET %s: decode conversation: %w", key, err)
	}
	if err := conv.Validate(); err != nil {
		return nil, fmt.Errorf("upstash GET %s: %w", key, err)
	}
	return conv, nil
}

func (s *UpstashStore) Save(ctx context.Context, conv *Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}
	key, err := s.key(conv.ContextID)
	if err != nil {
		return err
	}

	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = time.Now()
	}
	conv.UpdatedAt = conv.UpdatedAt.UTC()

	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", conv.ContextID, err)
	}

	args := []any{"SET", key, string(raw)}
	if s.ttl > 0 {
		args = append(args, "EX", expirySeconds(s.ttl))
	}
	_, err = s.do(ctx, args...)
	return err
}

func (s *UpstashStore) Delete(ctx context.Context, contextID string) error {
	key, err := s.key(contextID)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, "DEL", key)
	return err
}

func (s *UpstashStore) key(contextID string) (string, error) {
	if strings.TrimSpace(contextID) == "" {
		return "", ErrInvalidContext
	}
	prefix := s.prefix
	if prefix == "" {
		prefix = historyKeyPrefix
	}
	return prefix + contextID + historyKeySuffix, nil
}

// do posts one command as a JSON array and returns the raw "result" field.
func (s *UpstashStore) do(ctx context.Context, args ...any) (json.RawMessage, error) {
	name := fmt.Sprint(args[0])

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("upstash %s: encode command: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstash %s: %w", name, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstash %s: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstashReply))
	if err != nil {
		return nil, fmt.Errorf("upstash %s: read reply: %w", name, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("upstash %s: status %d: %s", name, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("upstash %s: decode reply: %w", name, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("upstash %s: %s", name, reply.Error)
	}
	if len(bytes.TrimSpace(reply.Result)) == 0 {
		return json.RawMessage("null"), nil
	}
	return reply.Result, nil
}

// expirySeconds rounds up to whole seconds, minimum one.
func expirySeconds(ttl time.Duration) int64 {
	return int64(math.Max(1, math.Ceil(ttl.Seconds())))
}
