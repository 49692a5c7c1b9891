package repository

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
)

// ArtifactStore keeps every artifact's current content and its append-only
// version history. The current content always equals the last version.
type ArtifactStore struct {
	order   []model.ArtifactID
	current map[model.ArtifactID]string
	history map[model.ArtifactID][]model.Version
}

// NewArtifactStore creates an empty artifact store
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{
		current: make(map[model.ArtifactID]string),
		history: make(map[model.ArtifactID][]model.Version),
	}
}

// Create adds a new artifact with a single version at seq
func (s *ArtifactStore) Create(id model.ArtifactID, content string, seq model.Sequence) error {
	if _, ok := s.current[id]; ok {
		return goerr.Wrap(model.ErrDuplicateID, "artifact already exists", goerr.V("artifact_id", id))
	}

	s.order = append(s.order, id)
	s.current[id] = content
	s.history[id] = []model.Version{{Sequence: seq, Content: content}}
	return nil
}

// Edit replaces the artifact content and appends a version. Identical
// content succeeds without a new version and reports changed=false.
func (s *ArtifactStore) Edit(id model.ArtifactID, content string, seq model.Sequence) (bool, error) {
	cur, ok := s.current[id]
	if !ok {
		return false, goerr.Wrap(model.ErrNotFound, "artifact does not exist", goerr.V("artifact_id", id))
	}
	if cur == content {
		return false, nil
	}

	s.current[id] = content
	s.history[id] = append(s.history[id], model.Version{Sequence: seq, Content: content})
	return true, nil
}

// Current returns the latest content of the artifact
func (s *ArtifactStore) Current(id model.ArtifactID) (string, bool) {
	content, ok := s.current[id]
	return content, ok
}

// AtSequence returns the content of the latest version stored at or before seq
func (s *ArtifactStore) AtSequence(id model.ArtifactID, seq model.Sequence) (string, bool) {
	return s.latest(id, func(v model.Sequence) bool { return v <= seq })
}

// BeforeSequence returns the content of the latest version stored strictly before seq
func (s *ArtifactStore) BeforeSequence(id model.ArtifactID, seq model.Sequence) (string, bool) {
	return s.latest(id, func(v model.Sequence) bool { return v < seq })
}

// latest picks the matching version with the highest sequence; among equal
// sequences the one inserted last wins.
func (s *ArtifactStore) latest(id model.ArtifactID, match func(model.Sequence) bool) (string, bool) {
	var (
		found bool
		best  model.Version
	)
	for _, v := range s.history[id] {
		if !match(v.Sequence) {
			continue
		}
		if !found || v.Sequence >= best.Sequence {
			best, found = v, true
		}
	}
	return best.Content, found
}

// SnapshotAt returns every artifact that existed at seq, including
// artifacts whose content at that point was empty.
func (s *ArtifactStore) SnapshotAt(seq model.Sequence) map[model.ArtifactID]string {
	result := make(map[model.ArtifactID]string)
	for _, id := range s.order {
		if content, ok := s.AtSequence(id, seq); ok {
			result[id] = content
		}
	}
	return result
}

// IDs returns artifact IDs in creation order
func (s *ArtifactStore) IDs() []model.ArtifactID {
	return append([]model.ArtifactID(nil), s.order...)
}

// VersionCount returns the number of stored versions of the artifact
func (s *ArtifactStore) VersionCount(id model.ArtifactID) int {
	return len(s.history[id])
}

// Versions returns a copy of the artifact's version history
func (s *ArtifactStore) Versions(id model.ArtifactID) []model.Version {
	return append([]model.Version(nil), s.history[id]...)
}

// Export returns the serializable state of the store
func (s *ArtifactStore) Export() *model.ArtifactsSnapshot {
	snap := &model.ArtifactsSnapshot{
		Current: make(map[model.ArtifactID]string, len(s.current)),
		History: make(map[model.ArtifactID][]model.Version, len(s.history)),
	}
	for id, content := range s.current {
		snap.Current[id] = content
	}
	for id, versions := range s.history {
		snap.History[id] = append([]model.Version(nil), versions...)
	}
	return snap
}

// Restore replaces the store state with a snapshot. Artifacts without a
// recorded history get a single version at sequence 0. A history whose
// last version disagrees with the current content gets the current
// content appended so that the store invariant holds.
func (s *ArtifactStore) Restore(snap *model.ArtifactsSnapshot) {
	s.order = nil
	s.current = make(map[model.ArtifactID]string)
	s.history = make(map[model.ArtifactID][]model.Version)
	if snap == nil {
		return
	}

	for _, id := range sortedArtifactIDs(snap) {
		versions := append([]model.Version(nil), snap.History[id]...)
		content, hasCurrent := snap.Current[id]

		switch {
		case len(versions) == 0:
			versions = []model.Version{{Sequence: 0, Content: content}}
		case !hasCurrent:
			content = versions[len(versions)-1].Content
		case versions[len(versions)-1].Content != content:
			last := versions[len(versions)-1].Sequence
			versions = append(versions, model.Version{Sequence: last, Content: content})
		}

		s.order = append(s.order, id)
		s.current[id] = content
		s.history[id] = versions
	}
}

// sortedArtifactIDs orders snapshot artifacts by the sequence of their first
// version, then by ID, which reproduces creation order for canonical exports.
func sortedArtifactIDs(snap *model.ArtifactsSnapshot) []model.ArtifactID {
	first := make(map[model.ArtifactID]model.Sequence)
	for id := range snap.Current {
		first[id] = 0
	}
	for id, versions := range snap.History {
		first[id] = 0
		if len(versions) > 0 {
			first[id] = versions[0].Sequence
		}
	}

	ids := make([]model.ArtifactID, 0, len(first))
	for id := range first {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if first[ids[i]] != first[ids[j]] {
			return first[ids[i]] < first[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}
