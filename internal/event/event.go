// Package event defines the hook event model and the best-effort decoder that
// turns the raw bytes a Claude Code hook writes to stdin into an Event.
//
// Decoding never fails. Input that cannot be parsed still produces an Event
// whose Type is Unknown (or whatever could be recovered from the raw text),
// so routing and logging always have something to work with.
package event

import (
	"bytes"
	"io"
)

// Type is the hook event name (hook_event_name in the wire document)
type Type string

const (
	PreToolUse       Type = "PreToolUse"
	PostToolUse      Type = "PostToolUse"
	Stop             Type = "Stop"
	Notification     Type = "Notification"
	SessionStart     Type = "SessionStart"
	SessionEnd       Type = "SessionEnd"
	UserPromptSubmit Type = "UserPromptSubmit"
	SubagentStop     Type = "SubagentStop"
	PreCompact       Type = "PreCompact"
	// Unknown is used when no event name could be recovered from the input
	Unknown Type = "Unknown"
)

// knownTypes lists the hook events emitted by Claude Code
var knownTypes = map[Type]bool{
	PreToolUse:       true,
	PostToolUse:      true,
	Stop:             true,
	Notification:     true,
	SessionStart:     true,
	SessionEnd:       true,
	UserPromptSubmit: true,
	SubagentStop:     true,
	PreCompact:       true,
}

// Known reports whether t is one of the hook events emitted by Claude Code.
// Unrecognized names are still routed; channels opt into them by name.
func (t Type) Known() bool {
	return knownTypes[t]
}

func (t Type) String() string {
	return string(t)
}

// Event is a single decoded hook invocation. It is a value type: copies are
// independent and the raw payload is only reachable through read-only accessors.
type Event struct {
	Type           Type
	ToolName       string
	SessionID      string
	Prompt         string
	CWD            string
	TranscriptPath string

	// Encoding is the text encoding that produced a valid document.
	// Empty when the fields were recovered by the permissive search.
	Encoding string

	// Recovered is true when the payload was not a valid document and the
	// routing fields were extracted from the raw text instead.
	Recovered bool

	raw []byte
}

// New builds an Event without a payload, used for positional-argument
// invocations and dry runs.
func New(t Type, toolName string) Event {
	if t == "" {
		t = Unknown
	}
	return Event{Type: t, ToolName: toolName}
}

// Payload returns a copy of the raw bytes the event was decoded from
func (e Event) Payload() []byte {
	return bytes.Clone(e.raw)
}

// PayloadReader returns a reader over the raw bytes. The reader cannot modify
// the event, so it is safe to hand one to each handler process.
func (e Event) PayloadReader() io.Reader {
	return bytes.NewReader(e.raw)
}

// HasTool reports whether the event carries a tool name
func (e Event) HasTool() bool {
	return e.ToolName != ""
}

// WithFallback fills fields decoding could not recover from the positional
// arguments a hook command line may carry. Decoded values always win.
func (e Event) WithFallback(toolName, eventType string) Event {
	if e.Type == Unknown && eventType != "" {
		e.Type = Type(eventType)
	}
	if e.ToolName == "" && toolName != "" {
		e.ToolName = toolName
	}
	return e
}
