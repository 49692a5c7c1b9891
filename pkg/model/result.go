package model

import (
	"fmt"
	"unicode/utf8"
)

type CreateArtifactResult struct {
	ArtifactID ArtifactID
	Contents   string
}

func (r *CreateArtifactResult) Response() map[string]any {
	return map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Created artifact '%s' with %d characters", r.ArtifactID, utf8.RuneCountInString(r.Contents)),
		"artifact_id": string(r.ArtifactID),
	}
}

type EditArtifactResult struct {
	ArtifactID      ArtifactID
	OriginalContent string
	NewContent      string
	ChangesMade     int
	Changed         bool
}

func (r *EditArtifactResult) Response() map[string]any {
	msg := fmt.Sprintf("Edited artifact '%s' with %d substitutions", r.ArtifactID, r.ChangesMade)
	if !r.Changed {
		msg = fmt.Sprintf("No changes needed for artifact '%s' (content identical)", r.ArtifactID)
	}

	return map[string]any{
		"success":      true,
		"message":      msg,
		"artifact_id":  string(r.ArtifactID),
		"new_content":  r.NewContent,
		"changes_made": r.ChangesMade,
	}
}

type EditSystemPromptResult struct {
	OriginalPrompt string
	NewPrompt      string
	ChangesMade    int
}

func (r *EditSystemPromptResult) Response() map[string]any {
	return map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("Edited system prompt with %d substitutions", r.ChangesMade),
		"changes_made": r.ChangesMade,
	}
}

type MemoryResult struct {
	Mode     MemoryMode
	MemoryID MemoryID
}

func (r *MemoryResult) Response() map[string]any {
	var msg string
	switch r.Mode {
	case MemoryModeNew:
		msg = fmt.Sprintf("Created memory %d", r.MemoryID)
	case MemoryModeEdit:
		msg = fmt.Sprintf("Updated memory %d", r.MemoryID)
	case MemoryModeDelete:
		msg = fmt.Sprintf("Deleted memory %d", r.MemoryID)
	}

	return map[string]any{
		"success":   true,
		"message":   msg,
		"mode":      string(r.Mode),
		"memory_id": int(r.MemoryID),
	}
}
