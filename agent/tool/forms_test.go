package tool

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

func formArgs() map[string]any {
	return map[string]any{"form": map[string]any{
		"title": "Trip details",
		"fields": []any{
			map[string]any{"name": "origin", "label": "From", "type": "text", "required": true},
			map[string]any{"name": "start_date", "label": "Departure", "type": "date", "required": true},
		},
	}}
}

func TestEnsureAllDataReturnsAnswers(t *testing.T) {
	t.Parallel()

	var got contractx.FormRender
	forms := contractx.FormRequesterFunc(func(ctx context.Context, form contractx.FormRender) (contractx.FormResponse, error) {
		got = form
		return contractx.FormResponse{Values: map[string]any{"origin": "PRG", "start_date": "2025-03-01"}}, nil
	})

	c, err := NewCatalog(EnsureAllData(forms))
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	out, err := c.Execute(context.Background(), contractx.ToolRequest{Tool: ToolEnsureAllData, Args: formArgs()})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Error != "" {
		t.Fatalf("unexpected tool error: %s", out.Error)
	}
	if got.Title != "Trip details" || len(got.Fields) != 2 || got.Fields[1].Name != "start_date" {
		t.Fatalf("requester got %+v", got)
	}
	values, ok := out.Result.(map[string]any)
	if !ok || values["origin"] != "PRG" {
		t.Fatalf("unexpected result: %#v", out.Result)
	}
}

func TestEnsureAllDataInvalidForm(t *testing.T) {
	t.Parallel()

	called := false
	forms := contractx.FormRequesterFunc(func(ctx context.Context, form contractx.FormRender) (contractx.FormResponse, error) {
		called = true
		return contractx.FormResponse{}, nil
	})
	c, err := NewCatalog(EnsureAllData(forms))
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	args := map[string]any{"form": map[string]any{
		"title": "Trip details",
		"fields": []any{
			map[string]any{"name": "origin"},
			map[string]any{"name": "origin"},
		},
	}}
	out, err := c.Execute(context.Background(), contractx.ToolRequest{Tool: ToolEnsureAllData, Args: args})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Error == "" {
		t.Fatal("expected validation error for duplicate field names")
	}
	if called {
		t.Fatal("requester must not be called for an invalid form")
	}
}

func TestEnsureAllDataWithoutRequester(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog(EnsureAllData(nil))
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	out, err := c.Execute(context.Background(), contractx.ToolRequest{Tool: ToolEnsureAllData, Args: formArgs()})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Error == "" {
		t.Fatal("expected form unavailable error")
	}
}

func TestEnsureAllDataCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	forms := contractx.FormRequesterFunc(func(ctx context.Context, form contractx.FormRender) (contractx.FormResponse, error) {
		cancel()
		return contractx.FormResponse{}, ctx.Err()
	})
	c, err := NewCatalog(EnsureAllData(forms))
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	if _, err := c.Execute(ctx, contractx.ToolRequest{Tool: ToolEnsureAllData, Args: formArgs()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestValidateFormSelectNeedsOptions(t *testing.T) {
	t.Parallel()

	form := contractx.FormRender{
		Title:  "Cabin",
		Fields: []contractx.FormField{{Name: "cabin", Type: "select"}},
	}
	if err := ValidateForm(form); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("ValidateForm() error = %v, want ErrValidation", err)
	}

	form.Fields[0].Options = []string{"economy", "business"}
	if err := ValidateForm(form); err != nil {
		t.Fatalf("ValidateForm() error = %v", err)
	}
}
