package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

type FinalizeInput struct {
	TaskID    string
	ContextID string
	Answer    string
	Artifacts []contractx.Artifact
}

type FinalizeState struct {
	FinalizeInput
	Now   time.Time
	Parts []contractx.Part
}

func ComposeReply(in FinalizeInput, nowFn func() time.Time) (*FinalizeState, error) {
	answer := strings.TrimSpace(in.Answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: final answer is empty", contractx.ErrSchemaViolation)
	}
	return &FinalizeState{
		FinalizeInput: in,
		Now:           nowFn().UTC(),
		Parts:         []contractx.Part{contractx.TextPart(answer)},
	}, nil
}

func artifact(artifacts []contractx.Artifact, name string) (contractx.Artifact, bool) {
	for _, a := range artifacts {
		if a.Name == name && len(a.Data) > 0 {
			return a, true
		}
	}
	return contractx.Artifact{}, false
}

// AttachStaticMap inlines the PNG map as a base64 file part.
func AttachStaticMap(in *FinalizeState) (*FinalizeState, error) {
	if in == nil {
		return nil, errors.New("finalize state is nil")
	}
	a, ok := artifact(in.Artifacts, contractx.StaticMapName)
	if !ok {
		return in, nil
	}
	in.Parts = append(in.Parts, contractx.FileBytesPart(a.Name, a.MimeType, a.Data))
	return in, nil
}

// AttachInteractiveMap uploads the HTML map and references it by URI. A
// failed upload drops the part; the answer and static map still go out.
func AttachInteractiveMap(ctx context.Context, in *FinalizeState, uploader contractx.FileUploader) (*FinalizeState, error) {
	if in == nil {
		return nil, errors.New("finalize state is nil")
	}
	a, ok := artifact(in.Artifacts, contractx.InteractiveMapName)
	if !ok || uploader == nil {
		return in, nil
	}

	uri, err := uploader.Upload(ctx, a.Name, a.MimeType, a.Data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Ctx(ctx).Warn().
			Err(err).
			Str("file", a.Name).
			Msg("interactive map upload failed")
		return in, nil
	}
	in.Parts = append(in.Parts, contractx.FileURIPart(a.Name, a.MimeType, uri))
	return in, nil
}

func StoreReply(ctx context.Context, in *FinalizeState, history contractx.History, newID func() string) (*contractx.Message, error) {
	if in == nil {
		return nil, errors.New("finalize state is nil")
	}
	msg := contractx.Message{
		ID:        newID(),
		ContextID: in.ContextID,
		TaskID:    in.TaskID,
		Role:      contractx.RoleAgent,
		Parts:     in.Parts,
		CreatedAt: in.Now,
	}
	if err := history.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("store reply message: %w", err)
	}
	return &msg, nil
}
