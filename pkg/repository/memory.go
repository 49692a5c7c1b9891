package repository

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/substitution"
)

// MemoryStore holds the editable system prompt and the keyed memories
// appended to it. Memory IDs are never reused.
type MemoryStore struct {
	prompt   string
	baseline string
	memories map[model.MemoryID]string
	nextID   model.MemoryID
}

// NewMemoryStore creates a store whose prompt and baseline are prompt
func NewMemoryStore(prompt string) *MemoryStore {
	return &MemoryStore{
		prompt:   prompt,
		baseline: prompt,
		memories: make(map[model.MemoryID]string),
		nextID:   1,
	}
}

// Prompt returns the current system prompt text
func (s *MemoryStore) Prompt() string {
	return s.prompt
}

// Baseline returns the externally supplied prompt the current one derives from
func (s *MemoryStore) Baseline() string {
	return s.baseline
}

// SetPrompt applies an externally supplied prompt. When it differs from the
// baseline, the prompt (including any edits) is replaced.
func (s *MemoryStore) SetPrompt(text string) bool {
	if text == s.baseline {
		return false
	}
	s.prompt = text
	s.baseline = text
	return true
}

// EditPrompt applies single substitutions to the prompt as one batch
func (s *MemoryStore) EditPrompt(subs []model.Substitution) (*substitution.Result, error) {
	if s.prompt == "" {
		return nil, goerr.Wrap(model.ErrEmptyPrompt, "cannot edit an empty system prompt")
	}

	result, err := substitution.Apply(s.prompt, nil, subs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to edit system prompt")
	}

	s.prompt = result.Text
	return result, nil
}

// New stores a memory. A nil id takes the next free ID; an explicit id
// moves the counter past itself.
func (s *MemoryStore) New(id *model.MemoryID, contents string) (model.MemoryID, error) {
	if contents == "" {
		return 0, goerr.Wrap(model.ErrMissingContents, "memory contents are empty")
	}

	var newID model.MemoryID
	if id == nil {
		newID = s.nextID
		s.nextID++
	} else {
		newID = *id
		if _, ok := s.memories[newID]; ok {
			return 0, goerr.Wrap(model.ErrDuplicateID, "memory already exists", goerr.V("memory_id", newID))
		}
		if newID+1 > s.nextID {
			s.nextID = newID + 1
		}
	}

	s.memories[newID] = contents
	return newID, nil
}

// Edit replaces the contents of an existing memory
func (s *MemoryStore) Edit(id model.MemoryID, contents string) error {
	if _, ok := s.memories[id]; !ok {
		return goerr.Wrap(model.ErrNotFound, "memory does not exist", goerr.V("memory_id", id))
	}
	if contents == "" {
		return goerr.Wrap(model.ErrMissingContents, "memory contents are empty", goerr.V("memory_id", id))
	}

	s.memories[id] = contents
	return nil
}

// Delete removes a memory. Its ID stays retired.
func (s *MemoryStore) Delete(id model.MemoryID) error {
	if _, ok := s.memories[id]; !ok {
		return goerr.Wrap(model.ErrNotFound, "memory does not exist", goerr.V("memory_id", id))
	}

	delete(s.memories, id)
	return nil
}

// Get returns the contents of a memory
func (s *MemoryStore) Get(id model.MemoryID) (string, bool) {
	contents, ok := s.memories[id]
	return contents, ok
}

// List returns all memories in ascending ID order
func (s *MemoryStore) List() []*model.Memory {
	ids := make([]model.MemoryID, 0, len(s.memories))
	for id := range s.memories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	memories := make([]*model.Memory, len(ids))
	for i, id := range ids {
		memories[i] = &model.Memory{ID: id, Contents: s.memories[id]}
	}
	return memories
}

// NextID returns the ID the next memory without an explicit ID will get
func (s *MemoryStore) NextID() model.MemoryID {
	return s.nextID
}

// FullPrompt renders the prompt with all memories. The boolean is false
// when there is no system instruction at all.
func (s *MemoryStore) FullPrompt() (string, bool) {
	return model.RenderPrompt(s.prompt, s.List())
}

// Restore replaces prompt, memories and counter. The counter never falls
// behind the highest stored ID.
func (s *MemoryStore) Restore(prompt, baseline string, memories map[model.MemoryID]string, nextID model.MemoryID) {
	s.prompt = prompt
	s.baseline = baseline
	s.memories = make(map[model.MemoryID]string, len(memories))
	s.nextID = 1
	if nextID > s.nextID {
		s.nextID = nextID
	}

	for id, contents := range memories {
		s.memories[id] = contents
		if id+1 > s.nextID {
			s.nextID = id + 1
		}
	}
}

// Memories returns a copy of the memory map
func (s *MemoryStore) Memories() map[model.MemoryID]string {
	result := make(map[model.MemoryID]string, len(s.memories))
	for id, contents := range s.memories {
		result[id] = contents
	}
	return result
}
