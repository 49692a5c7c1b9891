package model

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

type ArtifactID string

// Version is one stored revision of an artifact. It is serialized as the
// pair [sequence, content].
type Version struct {
	Sequence Sequence
	Content  string
}

func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{v.Sequence, v.Content})
}

func (v *Version) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return goerr.New("version pair must have two elements", goerr.V("length", len(pair)))
		}
		if err := json.Unmarshal(pair[0], &v.Sequence); err != nil {
			return goerr.Wrap(err, "invalid version sequence")
		}
		if err := json.Unmarshal(pair[1], &v.Content); err != nil {
			return goerr.Wrap(err, "invalid version content")
		}
		return nil
	}

	var obj struct {
		Sequence Sequence `json:"sequence"`
		Content  string   `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return goerr.Wrap(err, "version must be a pair or an object")
	}
	v.Sequence, v.Content = obj.Sequence, obj.Content
	return nil
}

// ArtifactsSnapshot is the serialized state of the artifact store
type ArtifactsSnapshot struct {
	Current map[ArtifactID]string    `json:"current"`
	History map[ArtifactID][]Version `json:"history,omitempty"`
}

// UnmarshalJSON also accepts the older artifacts/artifact_history keys
func (s *ArtifactsSnapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Current         map[ArtifactID]string    `json:"current"`
		History         map[ArtifactID][]Version `json:"history"`
		Artifacts       map[ArtifactID]string    `json:"artifacts"`
		ArtifactHistory map[ArtifactID][]Version `json:"artifact_history"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return goerr.Wrap(err, "invalid artifacts section")
	}

	s.Current = raw.Current
	if s.Current == nil {
		s.Current = raw.Artifacts
	}
	s.History = raw.History
	if s.History == nil {
		s.History = raw.ArtifactHistory
	}
	return nil
}
