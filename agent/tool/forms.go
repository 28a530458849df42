package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

const ToolEnsureAllData = "ensure_all_data"

type ensureAllDataArgs struct {
	Form contractx.FormRender `json:"form" validate:"required"`
}

var formFieldParams = map[string]*schema.ParameterInfo{
	"name":        {Type: schema.String, Desc: "Key of the value in the answer, e.g. start_date", Required: true},
	"label":       {Type: schema.String, Desc: "Label shown to the user"},
	"type":        {Type: schema.String, Desc: "Input type", Enum: []string{"text", "number", "date", "select", "boolean"}},
	"description": {Type: schema.String, Desc: "Help text shown under the field"},
	"required":    {Type: schema.Boolean, Desc: "Whether the user must fill the field"},
	"options":     {Type: schema.Array, Desc: "Choices for select fields", ElemInfo: &schema.ParameterInfo{Type: schema.String}},
}

func ensureAllDataInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolEnsureAllData,
		Desc: "Ensures that all the required data is provided (flight dates, destination, origin, etc.). " +
			"Sends a form that asks the user for the missing inputs and returns all answered fields as a dictionary, e.g. {\"start_date\": ...}.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"form": {
				Type:     schema.Object,
				Desc:     "A form that asks the user for the missing inputs that are required",
				Required: true,
				SubParams: map[string]*schema.ParameterInfo{
					"title":       {Type: schema.String, Desc: "Form title", Required: true},
					"description": {Type: schema.String, Desc: "Short explanation of why the data is needed"},
					"fields": {
						Type:     schema.Array,
						Desc:     "Missing inputs",
						Required: true,
						ElemInfo: &schema.ParameterInfo{Type: schema.Object, SubParams: formFieldParams},
					},
				},
			},
		}),
	}
}

// EnsureAllData asks the user for missing trip parameters through forms.
// A nil requester makes every call fail with ErrFormUnavailable.
func EnsureAllData(forms contractx.FormRequester) Tool {
	return Tool{
		Info: ensureAllDataInfo(),
		Execute: func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
			var in ensureAllDataArgs
			if err := decodeArgs(args, &in); err != nil {
				return contractx.ToolResult{Tool: tool, Error: err.Error()}, nil
			}
			if err := ValidateForm(in.Form); err != nil {
				return contractx.ToolResult{Tool: tool, Error: err.Error()}, nil
			}
			if forms == nil {
				return contractx.ToolResult{}, fmt.Errorf("%w: no form requester for this request", contractx.ErrFormUnavailable)
			}

			resp, err := forms.RequestForm(ctx, in.Form)
			if err != nil {
				return contractx.ToolResult{}, fmt.Errorf("%w: %v", contractx.ErrFormUnavailable, err)
			}
			values := resp.Values
			if values == nil {
				values = map[string]any{}
			}
			return contractx.ToolResult{Tool: tool, Result: values}, nil
		},
	}
}
