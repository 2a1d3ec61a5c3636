// Package tools defines the capability contract the turn engine schedules
// against, plus the built-in tool set (shell, file I/O, search, memory).
//
// A tool that answers ShouldConfirmExecute with a non-nil Confirmation is
// held in the scheduler until the operator approves or cancels it. Tools
// that also implement ConfirmationHandler are told about the outcome so they
// can stop re-prompting for equivalent calls (the shell tool whitelists a
// command's root token on "proceed always").
package tools

import (
	"context"

	"gofer/internal/gemini"
)

// Outcome is the operator's answer to a confirmation prompt.
type Outcome string

const (
	OutcomeProceedOnce   Outcome = "proceed_once"
	OutcomeProceedAlways Outcome = "proceed_always"
	OutcomeCancel        Outcome = "cancel"
)

// ConfirmationType classifies what the operator is being asked to approve.
type ConfirmationType string

const (
	ConfirmExec        ConfirmationType = "exec"
	ConfirmEdit        ConfirmationType = "edit"
	ConfirmWrite       ConfirmationType = "write"
	ConfirmMemoryWrite ConfirmationType = "memory_write"
)

// Confirmation describes a pending operation for the operator. Fields are
// populated per Type: exec fills Command/RootCommand, edit fills Path/Diff,
// write fills Path, memory_write fills Fact/Path.
type Confirmation struct {
	Type        ConfirmationType `json:"type"`
	Command     string           `json:"command,omitempty"`
	RootCommand string           `json:"rootCommand,omitempty"`
	Path        string           `json:"path,omitempty"`
	Diff        string           `json:"diff,omitempty"`
	Fact        string           `json:"fact,omitempty"`
}

// Tool is the capability contract every registered tool satisfies.
type Tool interface {
	Name() string
	Description() string

	// Declaration returns the function declaration sent to the model.
	Declaration() gemini.FunctionDeclaration

	// ShouldConfirmExecute reports whether this invocation needs operator
	// approval. nil means execute immediately.
	ShouldConfirmExecute(ctx context.Context, args map[string]any) (*Confirmation, error)

	// Execute runs the tool. The returned map becomes the functionResponse
	// content; an error becomes an in-band error response for the model.
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
}

// ConfirmationHandler is implemented by tools that keep per-instance
// approval memory across calls.
type ConfirmationHandler interface {
	HandleConfirmationResponse(rootCommand string, outcome Outcome)
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// declaration builds a FunctionDeclaration with an OBJECT parameter schema,
// matching the FunctionDeclaration format the API expects.
func declaration(name, description string, properties map[string]any, required []string) gemini.FunctionDeclaration {
	return gemini.FunctionDeclaration{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":       "OBJECT",
			"properties": properties,
			"required":   required,
		},
	}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "STRING", "description": description}
}
