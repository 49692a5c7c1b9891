package conversation

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
)

// Snapshot returns the full state of the session as an export document
func (s *Session) Snapshot() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]*model.EventRecord, len(s.events))
	for i, ev := range s.events {
		history[i] = model.NewEventRecord(ev)
	}
	baseline := s.memory.Baseline()
	prompt := s.memory.Prompt()

	return &model.Snapshot{
		History:              history,
		Artifacts:            s.artifacts.Export(),
		SeqUser:              s.seqUser,
		SystemPrompt:         &prompt,
		SystemPromptBaseline: &baseline,
		SystemMemories:       s.memory.Memories(),
		NextMemoryID:         s.memory.NextID(),
	}
}

// Export serializes the session as snapshot JSON
func (s *Session) Export() ([]byte, error) {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal snapshot", goerr.V("session_id", s.id))
	}
	return data, nil
}

// Import replaces the session state with an exported snapshot or a bare
// event log. Snapshots carrying artifacts are restored as they are; a
// document without them is rebuilt by replaying its history.
func (s *Session) Import(ctx context.Context, data []byte) error {
	snap, err := model.ParseSnapshot(data)
	if err != nil {
		return err
	}
	return s.Restore(ctx, snap)
}

// Restore replaces the session state with snap. A snapshot without a
// system prompt keeps the prompt and baseline the session already has.
func (s *Session) Restore(ctx context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt := s.memory.Prompt()
	baseline := s.memory.Baseline()
	if snap.SystemPromptBaseline != nil {
		baseline = *snap.SystemPromptBaseline
	}

	// replay rebuilds prompt edits from the history on top of the baseline
	if snap.Artifacts == nil {
		s.reset(baseline)
		return s.replay(ctx, snap.History)
	}

	if snap.SystemPrompt != nil {
		prompt = *snap.SystemPrompt
		if snap.SystemPromptBaseline == nil {
			baseline = prompt
		}
	}

	s.reset(baseline)
	events, err := s.loadEvents(snap.History)
	if err != nil {
		return err
	}
	s.events = events
	if snap.SeqUser > s.seqUser {
		s.seqUser = snap.SeqUser
	}

	s.artifacts.Restore(snap.Artifacts)
	s.memory.Restore(prompt, baseline, snap.SystemMemories, snap.NextMemoryID)

	return nil
}
