package tools

import "errors"

// Tool registry errors.
var (
	// ErrToolNameEmpty is returned when a tool has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolAlreadyRegistered is returned when registering a duplicate.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrMissingRequiredArg is returned when a required argument is missing
	// or has the wrong type.
	ErrMissingRequiredArg = errors.New("missing required argument")

	// ErrPathOutsideRoot is returned when a file tool is pointed outside
	// the workspace.
	ErrPathOutsideRoot = errors.New("path escapes the workspace root")
)
