package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrDuplicateID is returned when creating an artifact or memory whose ID already exists
	ErrDuplicateID = goerr.New("duplicate id")

	// ErrNotFound is returned when an artifact, memory or substitution target does not exist
	ErrNotFound = goerr.New("not found")

	// ErrAmbiguous is returned when a single substitution matches more than once
	ErrAmbiguous = goerr.New("ambiguous substitution")

	// ErrNoChanges is returned when an edit batch is empty or changes nothing
	ErrNoChanges = goerr.New("no changes")

	// ErrEmptyPrompt is returned when editing a system prompt that has no text
	ErrEmptyPrompt = goerr.New("system prompt is empty")

	// ErrInvalidMode is returned for an unsupported memory operation mode
	ErrInvalidMode = goerr.New("invalid memory mode")

	// ErrUnknownFunction is returned when a tool name does not match any operation
	ErrUnknownFunction = goerr.New("unknown function")

	// ErrMissingContents is returned when memory contents are empty or missing
	ErrMissingContents = goerr.New("contents are required")

	// ErrPolicyDenied is returned when a tool policy rejects a call
	ErrPolicyDenied = goerr.New("denied by policy")
)

// FailureResponse converts an operation error into the tool-call response shape
func FailureResponse(err error) map[string]any {
	return map[string]any{
		"success": false,
		"message": err.Error(),
	}
}
