package conversation

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/substitution"
	"github.com/m-mizutani/quill/pkg/utils/logging"
)

// Each composite operation logs the request as a FunctionCall event,
// performs the storage effect and logs a FunctionResponse only when the
// effect fails. Success is evidenced by the call plus the new state.

// CreateArtifact creates a new artifact at seq
func (s *Session) CreateArtifact(ctx context.Context, args model.CreateArtifactArgs, seq model.Sequence) (*model.CreateArtifactResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFunctionCall(model.FuncCreateArtifact, model.EncodeArgs(args), seq)
	result, err := s.createArtifact(args, seq)
	if err != nil {
		s.addFunctionResponse(model.FuncCreateArtifact, model.FailureResponse(err), seq)
		return nil, err
	}
	return result, nil
}

// EditArtifact applies global then single substitutions to an artifact as one batch
func (s *Session) EditArtifact(ctx context.Context, args model.EditArtifactArgs, seq model.Sequence) (*model.EditArtifactResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFunctionCall(model.FuncEditArtifact, model.EncodeArgs(args), seq)
	result, err := s.editArtifact(ctx, args, seq)
	if err != nil {
		s.addFunctionResponse(model.FuncEditArtifact, model.FailureResponse(err), seq)
		return nil, err
	}
	return result, nil
}

// EditSystemPrompt applies single substitutions to the system prompt
func (s *Session) EditSystemPrompt(ctx context.Context, args model.EditSystemPromptArgs, seq model.Sequence) (*model.EditSystemPromptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFunctionCall(model.FuncEditSystemPrompt, model.EncodeArgs(args), seq)
	result, err := s.editSystemPrompt(args)
	if err != nil {
		s.addFunctionResponse(model.FuncEditSystemPrompt, model.FailureResponse(err), seq)
		return nil, err
	}
	return result, nil
}

// Memory creates, edits or deletes a memory
func (s *Session) Memory(ctx context.Context, args model.MemoryArgs, seq model.Sequence) (*model.MemoryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFunctionCall(model.FuncMemoryTwizzle, model.EncodeArgs(args), seq)
	result, err := s.memoryTwizzle(args)
	if err != nil {
		s.addFunctionResponse(model.FuncMemoryTwizzle, model.FailureResponse(err), seq)
		return nil, err
	}
	return result, nil
}

// Call routes a tool invocation by name and returns the tool-call response.
// Unknown names are logged with a failure response and report
// model.ErrUnknownFunction.
func (s *Session) Call(ctx context.Context, name string, args map[string]any, seq model.Sequence) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFunctionCall(name, args, seq)
	resp, err := s.applyCall(ctx, name, args, seq)
	if err != nil {
		s.addFunctionResponse(name, model.FailureResponse(err), seq)
		return nil, err
	}
	return resp, nil
}

// applyCall performs only the storage effect of a named operation. It is
// shared by live calls and replay.
func (s *Session) applyCall(ctx context.Context, name string, args map[string]any, seq model.Sequence) (map[string]any, error) {
	switch name {
	case model.FuncCreateArtifact:
		var input model.CreateArtifactArgs
		if err := model.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		result, err := s.createArtifact(input, seq)
		if err != nil {
			return nil, err
		}
		return result.Response(), nil

	case model.FuncEditArtifact:
		var input model.EditArtifactArgs
		if err := model.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		result, err := s.editArtifact(ctx, input, seq)
		if err != nil {
			return nil, err
		}
		return result.Response(), nil

	case model.FuncEditSystemPrompt:
		var input model.EditSystemPromptArgs
		if err := model.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		result, err := s.editSystemPrompt(input)
		if err != nil {
			return nil, err
		}
		return result.Response(), nil

	case model.FuncMemoryTwizzle:
		var input model.MemoryArgs
		if err := model.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		result, err := s.memoryTwizzle(input)
		if err != nil {
			return nil, err
		}
		return result.Response(), nil

	default:
		return nil, goerr.Wrap(model.ErrUnknownFunction, "no operation matches the function name", goerr.V("name", name))
	}
}

func (s *Session) createArtifact(args model.CreateArtifactArgs, seq model.Sequence) (*model.CreateArtifactResult, error) {
	if args.ID == "" {
		return nil, goerr.New("artifact id is required")
	}
	if err := s.artifacts.Create(args.ID, args.Contents, seq); err != nil {
		return nil, err
	}

	return &model.CreateArtifactResult{
		ArtifactID: args.ID,
		Contents:   args.Contents,
	}, nil
}

func (s *Session) editArtifact(ctx context.Context, args model.EditArtifactArgs, seq model.Sequence) (*model.EditArtifactResult, error) {
	original, ok := s.artifacts.Current(args.ID)
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "artifact does not exist", goerr.V("artifact_id", args.ID))
	}

	edit, err := substitution.Apply(original, args.GlobalSubstitutions, args.SingleSubstitutions)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to edit artifact", goerr.V("artifact_id", args.ID))
	}
	for _, w := range edit.Warnings {
		logging.From(ctx).Warn(w, "artifact_id", args.ID)
	}

	changed, err := s.artifacts.Edit(args.ID, edit.Text, seq)
	if err != nil {
		return nil, err
	}

	return &model.EditArtifactResult{
		ArtifactID:      args.ID,
		OriginalContent: original,
		NewContent:      edit.Text,
		ChangesMade:     edit.ChangesApplied,
		Changed:         changed,
	}, nil
}

func (s *Session) editSystemPrompt(args model.EditSystemPromptArgs) (*model.EditSystemPromptResult, error) {
	original := s.memory.Prompt()
	edit, err := s.memory.EditPrompt(args.Substitutions)
	if err != nil {
		return nil, err
	}

	return &model.EditSystemPromptResult{
		OriginalPrompt: original,
		NewPrompt:      edit.Text,
		ChangesMade:    edit.ChangesApplied,
	}, nil
}

func (s *Session) memoryTwizzle(args model.MemoryArgs) (*model.MemoryResult, error) {
	if err := args.Mode.Validate(); err != nil {
		return nil, err
	}

	result := &model.MemoryResult{Mode: args.Mode}
	switch args.Mode {
	case model.MemoryModeNew:
		id, err := s.memory.New(args.MemoryID, args.Contents)
		if err != nil {
			return nil, err
		}
		result.MemoryID = id

	case model.MemoryModeEdit:
		if args.MemoryID == nil {
			return nil, goerr.Wrap(model.ErrNotFound, "memory_id is required for edit")
		}
		if err := s.memory.Edit(*args.MemoryID, args.Contents); err != nil {
			return nil, err
		}
		result.MemoryID = *args.MemoryID

	case model.MemoryModeDelete:
		if args.MemoryID == nil {
			return nil, goerr.Wrap(model.ErrNotFound, "memory_id is required for delete")
		}
		if err := s.memory.Delete(*args.MemoryID); err != nil {
			return nil, err
		}
		result.MemoryID = *args.MemoryID
	}

	return result, nil
}
