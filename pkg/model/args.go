package model

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

// Tool names of the composite operations
const (
	FuncCreateArtifact   = "create_artifact"
	FuncEditArtifact     = "edit_artifact"
	FuncEditSystemPrompt = "edit_system_prompt"
	FuncMemoryTwizzle    = "memory_twizzle"
)

// Substitution replaces From with To. Lists of substitutions are applied
// in order and later entries see the effect of earlier ones.
type Substitution struct {
	From string `json:"from_str" jsonschema:"Exact text to find"`
	To   string `json:"to_str" jsonschema:"Replacement text"`
}

type CreateArtifactArgs struct {
	ID       ArtifactID `json:"id" jsonschema:"Unique identifier of the new artifact"`
	Contents string     `json:"contents" jsonschema:"Full text of the artifact"`
}

type EditArtifactArgs struct {
	ID                  ArtifactID     `json:"id" jsonschema:"Identifier of the artifact to edit"`
	GlobalSubstitutions []Substitution `json:"global_substitutions,omitempty" jsonschema:"Substitutions applied to every occurrence. Missing text is tolerated."`
	SingleSubstitutions []Substitution `json:"single_substitutions,omitempty" jsonschema:"Substitutions that must match exactly once"`
}

type EditSystemPromptArgs struct {
	Substitutions []Substitution `json:"substitutions" jsonschema:"Substitutions that must each match exactly once in the system prompt"`
}

type MemoryMode string

const (
	MemoryModeNew    MemoryMode = "new"
	MemoryModeEdit   MemoryMode = "edit"
	MemoryModeDelete MemoryMode = "delete"
)

// Validate checks if the memory mode is supported
func (m MemoryMode) Validate() error {
	switch m {
	case MemoryModeNew, MemoryModeEdit, MemoryModeDelete:
		return nil
	default:
		return goerr.Wrap(ErrInvalidMode, "mode must be one of new, edit or delete", goerr.V("mode", m))
	}
}

type MemoryArgs struct {
	Mode     MemoryMode `json:"mode" jsonschema:"One of new, edit or delete"`
	MemoryID *MemoryID  `json:"memory_id,omitempty" jsonschema:"Memory ID. Optional for new, required for edit and delete"`
	Contents string     `json:"contents,omitempty" jsonschema:"Memory text for new and edit"`
}

// DecodeArgs converts function call arguments into a typed argument struct
func DecodeArgs(args map[string]any, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal function args")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return goerr.Wrap(err, "failed to parse function args")
	}
	return nil
}

// EncodeArgs converts a typed argument struct into the map recorded in
// FunctionCall events
func EncodeArgs(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{}
	}
	return args
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// IsSessionFunction reports whether name is one of the composite
// operations a conversation session executes itself.
func IsSessionFunction(name string) bool {
	switch name {
	case FuncCreateArtifact, FuncEditArtifact, FuncEditSystemPrompt, FuncMemoryTwizzle:
		return true
	default:
		return false
	}
}
