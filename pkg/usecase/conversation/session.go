// Package conversation records a chat session as a sequence-numbered event
// log and owns the artifacts, memories and system prompt that tool calls
// in that log edit.
package conversation

import (
	"sync"

	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/repository"
	"google.golang.org/genai"
)

// Session is the whole mutable state of one conversation. All methods are
// safe for concurrent use; each composite operation runs as one unit.
type Session struct {
	mu sync.Mutex

	id        model.SessionID
	events    []model.Event
	seqUser   model.Sequence
	artifacts *repository.ArtifactStore
	memory    *repository.MemoryStore
}

type Option func(*Session)

// WithID sets the session ID instead of generating one
func WithID(id model.SessionID) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithSystemPrompt sets the initial system prompt and its baseline
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) {
		s.memory = repository.NewMemoryStore(prompt)
	}
}

// New creates an empty session
func New(opts ...Option) *Session {
	s := &Session{
		id:        model.NewSessionID(),
		artifacts: repository.NewArtifactStore(),
		memory:    repository.NewMemoryStore(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() model.SessionID {
	return s.id
}

// AddUserMessage appends a user turn and returns its newly allocated sequence
func (s *Session) AddUserMessage(parts ...*genai.Part) model.Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqUser++
	s.events = append(s.events, &model.UserEvent{Seq: s.seqUser, Parts: parts})
	return s.seqUser
}

// AddModelMessage appends a model turn tagged with the triggering user sequence
func (s *Session) AddModelMessage(seq model.Sequence, parts ...*genai.Part) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, &model.ModelEvent{Seq: seq, Parts: parts})
}

// AddFunctionCall appends a function call event
func (s *Session) AddFunctionCall(name string, args map[string]any, seq model.Sequence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFunctionCall(name, args, seq)
}

// AddFunctionResponse appends a function response event
func (s *Session) AddFunctionResponse(name string, response map[string]any, seq model.Sequence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFunctionResponse(name, response, seq)
}

func (s *Session) addFunctionCall(name string, args map[string]any, seq model.Sequence) {
	if args == nil {
		args = map[string]any{}
	}
	s.events = append(s.events, &model.FunctionCallEvent{Seq: seq, Name: name, Args: args})
}

func (s *Session) addFunctionResponse(name string, response map[string]any, seq model.Sequence) {
	s.events = append(s.events, &model.FunctionResponseEvent{Seq: seq, Name: name, Response: response})
}

// CurrentSequence returns the sequence of the latest user turn
func (s *Session) CurrentSequence() model.Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seqUser
}

// Events returns a copy of the event log
func (s *Session) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.Event(nil), s.events...)
}

// LLMHistory projects the log into contents for a model request. Function
// calls become model-role parts and responses user-role parts; both are
// omitted unless includeFunctions is set.
func (s *Session) LLMHistory(includeFunctions bool) []*genai.Content {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents := make([]*genai.Content, 0, len(s.events))
	for _, ev := range s.events {
		switch e := ev.(type) {
		case *model.UserEvent:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: e.Parts})
		case *model.ModelEvent:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: e.Parts})
		case *model.FunctionCallEvent:
			if includeFunctions {
				contents = append(contents, &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{genai.NewPartFromFunctionCall(e.Name, e.Args)},
				})
			}
		case *model.FunctionResponseEvent:
			if includeFunctions {
				contents = append(contents, &genai.Content{
					Role:  genai.RoleUser,
					Parts: []*genai.Part{genai.NewPartFromFunctionResponse(e.Name, e.Response)},
				})
			}
		}
	}
	return contents
}

// Artifact returns the current content of an artifact
func (s *Session) Artifact(id model.ArtifactID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.artifacts.Current(id)
}

// ArtifactAt returns the artifact content as of seq
func (s *Session) ArtifactAt(id model.ArtifactID, seq model.Sequence) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.artifacts.AtSequence(id, seq)
}

// ArtifactBefore returns the artifact content just before seq
func (s *Session) ArtifactBefore(id model.ArtifactID, seq model.Sequence) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.artifacts.BeforeSequence(id, seq)
}

// ArtifactsAt returns all artifacts as of seq
func (s *Session) ArtifactsAt(seq model.Sequence) map[model.ArtifactID]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.artifacts.SnapshotAt(seq)
}

// ArtifactIDs returns artifact IDs in creation order
func (s *Session) ArtifactIDs() []model.ArtifactID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.artifacts.IDs()
}

// Versions returns the version history of an artifact
func (s *Session) Versions(id model.ArtifactID) []model.Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.artifacts.Versions(id)
}

// Memories returns all memories in ID order
func (s *Session) Memories() []*model.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.memory.List()
}

// SystemPrompt returns the current, possibly edited, prompt text
func (s *Session) SystemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.memory.Prompt()
}

// SetSystemPrompt supplies a prompt from outside the conversation. It only
// takes effect when it differs from the previously supplied one.
func (s *Session) SetSystemPrompt(prompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.memory.SetPrompt(prompt)
}

// FullPrompt renders the system instruction. The boolean is false when
// no instruction should be sent at all.
func (s *Session) FullPrompt() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.memory.FullPrompt()
}
