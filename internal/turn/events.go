package turn

import "gofer/internal/gemini"

// EventKind identifies the type of turn event.
type EventKind string

const (
	// EventContent carries an incremental chunk of model text.
	EventContent EventKind = "content"

	// EventConfirmationRequest asks the operator to approve a tool call.
	// The caller must answer via Turn.ResolveConfirmation before the turn
	// proceeds.
	EventConfirmationRequest EventKind = "confirmation_request"

	// EventToolCallResponse reports one settled tool result.
	EventToolCallResponse EventKind = "tool_call_response"

	// EventCitations carries grounding metadata from the model response.
	EventCitations EventKind = "citations"

	// EventError ends the turn without committing history.
	EventError EventKind = "error"
)

// Event is one element of the turn's finite, single-pass event stream.
// Exactly one value field is populated, selected by Kind.
type Event struct {
	Kind EventKind

	// Content is the text delta for EventContent.
	Content string

	// Call is the pending tool call for EventConfirmationRequest.
	Call *ToolCall

	// Response is the settled functionResponse part for EventToolCallResponse.
	Response *gemini.Part

	// Citations is the grounding metadata for EventCitations.
	Citations map[string]any

	// Err is the terminal failure for EventError.
	Err error
}
