package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
	promptx "github.com/tanpawarit/flight-search-agent/agent/prompt"
)

func StoreInput(ctx context.Context, in *GraphState, history contractx.History) (*GraphState, error) {
	if in == nil {
		return nil, errors.New("graph state is nil")
	}
	if err := history.Append(ctx, in.Message); err != nil {
		return nil, fmt.Errorf("store input message: %w", err)
	}

	log.Ctx(ctx).Debug().
		Str("message_id", in.Message.ID).
		Msg("input message stored")
	return in, nil
}

func BuildPrompt(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, errors.New("graph state is nil")
	}
	in.Prompt = promptx.Query(in.Message.Text())
	return in, nil
}
