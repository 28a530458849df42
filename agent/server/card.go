package server

import "strings"

type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

type AgentCapabilities struct {
	Streaming bool `json:"streaming"`
}

type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	Skills             []AgentSkill      `json:"skills"`
}

// DefaultCard describes the flight search agent served at baseURL.
func DefaultCard(baseURL string, version string) AgentCard {
	return AgentCard{
		Name:               "Flight Search Agent",
		Description:        "Searches flights with the Kiwi.com tools and draws the itineraries on a map.",
		URL:                strings.TrimRight(baseURL, "/"),
		Version:            version,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text", "image/png", "text/html"},
		Capabilities:       AgentCapabilities{Streaming: true},
		Skills: []AgentSkill{{
			ID:          "flight_search",
			Name:        "Flight search",
			Description: "Finds flights for a route and dates, asking for missing trip details through a form, and returns a static and an interactive map.",
			Tags:        []string{"flights", "travel", "maps"},
			Examples:    []string{"Find me a flight from Prague to Las Vegas next Friday"},
		}},
	}
}
