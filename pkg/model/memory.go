package model

import (
	"fmt"
	"strings"
)

type MemoryID int

// MemoryHeader introduces the memory blocks in the rendered system prompt
const MemoryHeader = "Your memories are as follows:"

// Memory is one keyed block of persistent instruction text
type Memory struct {
	ID       MemoryID
	Contents string
}

// Render formats the memory the way it appears in the system prompt
func (m *Memory) Render() string {
	return fmt.Sprintf("[MEMORY ID: %d]\n%s", m.ID, m.Contents)
}

// RenderPrompt builds the full system instruction from the prompt text and
// memories. The second return value is false when the result is empty,
// which callers must treat as "no system instruction".
func RenderPrompt(prompt string, memories []*Memory) (string, bool) {
	var blocks []string
	if prompt != "" {
		blocks = append(blocks, prompt)
	}
	if len(memories) > 0 {
		blocks = append(blocks, MemoryHeader)
		for _, m := range memories {
			blocks = append(blocks, m.Render())
		}
	}

	full := strings.Join(blocks, "\n\n")
	if full == "" {
		return "", false
	}
	return full, true
}
