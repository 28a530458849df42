package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

//go:embed template/system.txt
var systemRaw string

const queryPrefix = "Search flights for the user query: "

// System returns the trimmed system prompt.
func System() (string, error) {
	s := strings.TrimSpace(systemRaw)
	if s == "" {
		return "", fmt.Errorf("%w: system", contractx.ErrPromptMissing)
	}
	return s, nil
}

// Query wraps the user's text into the task prompt.
func Query(text string) string {
	return queryPrefix + strings.TrimSpace(text)
}
