package model

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// Snapshot is the export/import document of a whole conversation session
type Snapshot struct {
	History              []*EventRecord      `json:"history"`
	Artifacts            *ArtifactsSnapshot  `json:"artifacts,omitempty"`
	SeqUser              Sequence            `json:"seq_user"`
	SystemPrompt         *string             `json:"system_prompt,omitempty"`
	SystemPromptBaseline *string             `json:"system_prompt_baseline,omitempty"`
	SystemMemories       map[MemoryID]string `json:"system_memories"`
	NextMemoryID         MemoryID            `json:"next_memory_id"`
}

const savedContextKey = "history="

// savedContextTrailer closes the chat-session call in AI Studio exports
const savedContextTrailer = ")\n\nresponse = chat_session.send_message(\"INSERT_INPUT_HERE\")\n\nprint(response.text)"

// ParseSnapshot decodes an exported session. A bare JSON array is treated
// as an event log without derived state. Saved contexts of the form
// `history=[...]`, optionally preceded by a `"""` docstring as in AI Studio
// exports, are read as bare event logs.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	trimmed, err := stripSavedContext(bytes.TrimSpace(data))
	if err != nil {
		return nil, err
	}
	if len(trimmed) == 0 {
		return nil, goerr.New("snapshot is empty")
	}

	if trimmed[0] == '[' {
		var history []*EventRecord
		if err := json.Unmarshal(trimmed, &history); err != nil {
			return nil, goerr.Wrap(err, "failed to parse event log")
		}
		return &Snapshot{History: history}, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return nil, goerr.Wrap(err, "failed to parse snapshot")
	}
	return &snap, nil
}

func stripSavedContext(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, []byte(`"""`)) {
		idx := bytes.Index(data, []byte(savedContextKey))
		if idx < 0 {
			return nil, goerr.New("saved context has no history assignment")
		}
		data = bytes.TrimSuffix(data[idx:], []byte(savedContextTrailer))
		data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte(")"))
	}

	if rest, ok := bytes.CutPrefix(data, []byte(savedContextKey)); ok {
		data = bytes.TrimSpace(rest)
	}
	return data, nil
}
