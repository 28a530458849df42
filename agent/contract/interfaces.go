package contract

import (
	"context"
)

// FormRequester asks the user to fill a form and blocks until the answer
// arrives or ctx is done.
type FormRequester interface {
	RequestForm(ctx context.Context, form FormRender) (FormResponse, error)
}

type FormRequesterFunc func(ctx context.Context, form FormRender) (FormResponse, error)

func (f FormRequesterFunc) RequestForm(ctx context.Context, form FormRender) (FormResponse, error) {
	return f(ctx, form)
}

// Visualizer turns itineraries into the static and interactive maps.
type Visualizer interface {
	Visualize(ctx context.Context, flights [][]string) (Visualization, error)
}

// FileUploader persists a buffer and returns a URI usable in a file part.
type FileUploader interface {
	Upload(ctx context.Context, name string, mimeType string, data []byte) (string, error)
}

// History records the messages of a conversation.
type History interface {
	Append(ctx context.Context, msg Message) error
	Messages(ctx context.Context, contextID string) ([]Message, error)
}
