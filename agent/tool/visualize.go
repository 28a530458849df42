package tool

import (
	"context"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

const ToolVisualizeFlights = "visualize_flights"

type visualizeFlightsArgs struct {
	Flights [][]string `json:"flights" validate:"required,min=1,dive,min=1,dive,required"`
}

type VisualizeFlightsOutput struct {
	Segments int      `json:"segments"`
	Airports int      `json:"airports"`
	Files    []string `json:"files"`
}

func visualizeFlightsInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolVisualizeFlights,
		Desc: "Visualizes flights and saves them to a file. Use to visualize all flights from search results.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"flights": {
				Type: schema.Array,
				Desc: `A list of flights with waypoints (list of IATA airport codes), for example ` +
					`[["PRG", "LAS"], ["JFK", "LHR", "DXB", "SIN"]] for a direct flight and a flight with 2 layovers`,
				Required: true,
				ElemInfo: &schema.ParameterInfo{
					Type:     schema.Array,
					ElemInfo: &schema.ParameterInfo{Type: schema.String},
				},
			},
		}),
	}
}

// VisualizeFlights renders itineraries into a PNG and an HTML map. The
// buffers travel back as result artifacts.
func VisualizeFlights(v contractx.Visualizer) Tool {
	return Tool{
		Info: visualizeFlightsInfo(),
		Execute: func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
			var in visualizeFlightsArgs
			if err := decodeArgs(args, &in); err != nil {
				return contractx.ToolResult{Tool: tool, Error: err.Error()}, nil
			}

			out, err := v.Visualize(ctx, in.Flights)
			if err != nil {
				return contractx.ToolResult{}, err
			}

			artifacts := out.Artifacts()
			files := make([]string, 0, len(artifacts))
			for _, a := range artifacts {
				files = append(files, a.Name)
			}
			return contractx.ToolResult{
				Tool: tool,
				Result: VisualizeFlightsOutput{
					Segments: out.Segments,
					Airports: out.Airports,
					Files:    files,
				},
				Artifacts: artifacts,
			}, nil
		},
	}
}
