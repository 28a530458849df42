package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	openrouterx "github.com/tanpawarit/flight-search-agent/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `split_words:"true" required:"true"`
	Model              string        `split_words:"true" required:"true"`
	MaxCompletionToken int           `split_words:"true" default:"2000"`
	Temperature        float32       `split_words:"true" default:"0.2"`
	Timeout            time.Duration `split_words:"true" default:"60s"`
	SiteURL            string        `split_words:"true"`
	SiteName           string        `split_words:"true"`

	// ProbeOnStart lists the endpoint's models at startup and fails fast when
	// Model is not served.
	ProbeOnStart bool `split_words:"true" default:"false"`
	MaxSteps     int  `split_words:"true" default:"12"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: llm model is required", contractx.ErrValidation)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: llm max steps must be > 0", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouter() openrouterx.Config {
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(c.Model),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
