package contract

import (
	"encoding/base64"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

type PartKind string

const (
	PartText PartKind = "text"
	PartFile PartKind = "file"
)

const (
	StaticMapName       = "flights.png"
	StaticMapMimeType   = "image/png"
	InteractiveMapName  = "flights.html"
	InteractiveMimeType = "text/html"
)

// FilePart carries either inline base64 Bytes or a URI.
type FilePart struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

type Part struct {
	Kind PartKind  `json:"kind"`
	Text string    `json:"text,omitempty"`
	File *FilePart `json:"file,omitempty"`
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

func FileBytesPart(name, mimeType string, data []byte) Part {
	return Part{Kind: PartFile, File: &FilePart{
		Name:     name,
		MimeType: mimeType,
		Bytes:    base64.StdEncoding.EncodeToString(data),
	}}
}

func FileURIPart(name, mimeType, uri string) Part {
	return Part{Kind: PartFile, File: &FilePart{
		Name:     name,
		MimeType: mimeType,
		URI:      uri,
	}}
}

type Message struct {
	ID        string    `json:"message_id"`
	ContextID string    `json:"context_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
}

// Text joins the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind != PartText || p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

type FormField struct {
	Name        string   `json:"name" validate:"required"`
	Label       string   `json:"label,omitempty"`
	Type        string   `json:"type,omitempty" validate:"omitempty,oneof=text number date select boolean"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty" validate:"required_if=Type select"`
}

type FormRender struct {
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description,omitempty"`
	Fields      []FormField `json:"fields" validate:"required,min=1,unique=Name,dive"`
}

type FormRequest struct {
	ID   string     `json:"form_id"`
	Form FormRender `json:"form"`
}

type FormResponse struct {
	Values map[string]any `json:"values"`
}

type ToolRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	CallID    string     `json:"call_id,omitempty"`
	Tool      string     `json:"tool"`
	Result    any        `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Artifacts []Artifact `json:"-"`
}

// Artifact is a rendered buffer produced by a tool.
type Artifact struct {
	Name     string
	MimeType string
	Data     []byte
}

type Visualization struct {
	Segments    int
	Airports    int
	StaticPNG   []byte
	Interactive []byte
}

func (v Visualization) Artifacts() []Artifact {
	return []Artifact{
		{Name: StaticMapName, MimeType: StaticMapMimeType, Data: v.StaticPNG},
		{Name: InteractiveMapName, MimeType: InteractiveMimeType, Data: v.Interactive},
	}
}

type EventKind string

const (
	EventTask       EventKind = "task"
	EventDelta      EventKind = "delta"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventForm       EventKind = "form"
	EventPart       EventKind = "part"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// Event is one item of an agent stream. Only the field matching Kind is set.
type Event struct {
	Kind       EventKind    `json:"kind"`
	TaskID     string       `json:"task_id,omitempty"`
	ContextID  string       `json:"context_id,omitempty"`
	Text       string       `json:"text,omitempty"`
	ToolCall   *ToolRequest `json:"tool_call,omitempty"`
	ToolResult *ToolResult  `json:"tool_result,omitempty"`
	Form       *FormRequest `json:"form,omitempty"`
	Part       *Part        `json:"part,omitempty"`
	Message    *Message     `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`

	Err error `json:"-"`
}

func ErrorEvent(err error) *Event {
	return &Event{Kind: EventError, Error: err.Error(), Err: err}
}
