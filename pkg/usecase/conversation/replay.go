package conversation

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/repository"
	"github.com/m-mizutani/quill/pkg/utils/logging"
)

// Replay discards the current log and derived state and rebuilds both
// from records. The system prompt returns to its baseline before the
// first record is applied. Effects that fail are dropped; the log keeps
// whatever the records contain.
func (s *Session) Replay(ctx context.Context, records []*model.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseline := s.memory.Baseline()
	s.reset(baseline)
	return s.replay(ctx, records)
}

func (s *Session) reset(baseline string) {
	s.events = nil
	s.seqUser = 0
	s.artifacts = repository.NewArtifactStore()
	s.memory = repository.NewMemoryStore(baseline)
}

func (s *Session) replay(ctx context.Context, records []*model.EventRecord) error {
	logger := logging.From(ctx)

	events, err := s.loadEvents(records)
	if err != nil {
		return err
	}

	for _, ev := range events {
		s.events = append(s.events, ev)

		call, ok := ev.(*model.FunctionCallEvent)
		if !ok {
			continue
		}
		if _, err := s.applyCall(ctx, call.Name, call.Args, call.Seq); err != nil {
			logger.Debug("discard failed effect in replay",
				"function", call.Name,
				"sequence", call.Seq,
				"error", err,
			)
		}
	}

	return nil
}

// loadEvents converts records into events, assigning sequences to records
// that lack one, and advances seqUser to the highest user sequence.
func (s *Session) loadEvents(records []*model.EventRecord) ([]model.Event, error) {
	events := make([]model.Event, 0, len(records))
	lastUser := s.seqUser

	for i, rec := range records {
		if rec == nil {
			continue
		}

		seq := lastUser
		switch {
		case rec.Sequence != nil:
			seq = *rec.Sequence
		case rec.Role == model.RoleUser:
			seq = lastUser + 1
		}

		ev, err := eventFromRecord(rec, seq)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load event", goerr.V("index", i))
		}

		if rec.Role == model.RoleUser {
			lastUser = seq
			if seq > s.seqUser {
				s.seqUser = seq
			}
		}
		events = append(events, ev)
	}

	return events, nil
}

func eventFromRecord(rec *model.EventRecord, seq model.Sequence) (model.Event, error) {
	switch rec.Role {
	case model.RoleUser:
		return &model.UserEvent{Seq: seq, Parts: rec.Parts}, nil

	case model.RoleModel:
		return &model.ModelEvent{Seq: seq, Parts: rec.Parts}, nil

	case model.RoleFunction:
		name, args := rec.Call()
		if args == nil {
			args = map[string]any{}
		}
		return &model.FunctionCallEvent{Seq: seq, Name: name, Args: args}, nil

	case model.RoleFunctionResponse:
		name, response := rec.Response()
		return &model.FunctionResponseEvent{Seq: seq, Name: name, Response: response}, nil

	default:
		return nil, goerr.New("unknown event role", goerr.V("role", rec.Role))
	}
}
