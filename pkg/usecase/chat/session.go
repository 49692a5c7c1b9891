package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/adapter"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/policy"
	"github.com/m-mizutani/quill/pkg/tool"
	"github.com/m-mizutani/quill/pkg/tool/artifact"
	"github.com/m-mizutani/quill/pkg/tool/memory"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	"google.golang.org/genai"
)

// Session runs chat turns against Gemini and records them in a conversation
type Session struct {
	gemini   adapter.Gemini
	storage  adapter.Storage
	config   *Config
	conv     *conversation.Session
	registry *tool.Registry
	policy   *policy.Policy
}

// NewInput contains parameters for creating a new chat session
type NewInput struct {
	Gemini       adapter.Gemini
	Storage      adapter.Storage // Optional: required only for Save
	Config       *Config         // Optional: DefaultConfig is used when nil
	Conversation *conversation.Session
	ExtraTools   []tool.Tool    // Optional: e.g. tools provided by MCP servers
	Policy       *policy.Policy // Optional: nil allows every tool call
}

// ToolCall is a function call executed during a turn
type ToolCall struct {
	Name    string
	Args    map[string]any
	Success bool
	Message string
}

// TurnResult is the outcome of one user turn
type TurnResult struct {
	Sequence    model.Sequence
	Text        string
	ToolCalls   []ToolCall
	TotalTokens int32
	Latency     time.Duration
}

func New(input NewInput) (*Session, error) {
	if input.Gemini == nil {
		return nil, goerr.New("gemini client is required")
	}

	cfg := input.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conv := input.Conversation
	if conv == nil {
		conv = conversation.New()
	}

	tools := []tool.Tool{artifact.New(conv), memory.New(conv)}
	tools = append(tools, input.ExtraTools...)

	return &Session{
		gemini:   input.Gemini,
		storage:  input.Storage,
		config:   cfg,
		conv:     conv,
		registry: tool.New(tools...),
		policy:   input.Policy,
	}, nil
}

// Conversation returns the underlying conversation session
func (s *Session) Conversation() *conversation.Session {
	return s.conv
}

// Send records a user message, lets the model respond with any number of
// tool rounds and records the final model message. The turn sequence is
// allocated exactly once.
func (s *Session) Send(ctx context.Context, message string, attachments ...*genai.Part) (*TurnResult, error) {
	logger := logging.From(ctx).With("session_id", s.conv.ID())
	ctx = logging.With(ctx, logger)
	started := time.Now()

	parts := make([]*genai.Part, 0, len(attachments)+1)
	if message != "" {
		parts = append(parts, genai.NewPartFromText(message))
	}
	parts = append(parts, attachments...)
	if len(parts) == 0 {
		return nil, goerr.New("message is empty")
	}

	seq := s.conv.AddUserMessage(parts...)
	result := &TurnResult{Sequence: seq}
	contents := s.conv.LLMHistory(s.config.IncludeFunctionHistory)
	if s.config.IncludeFunctionHistory {
		contents = pairFunctionCalls(contents)
	}

	var texts []string
	for round := 0; ; round++ {
		if round >= s.config.MaxToolRounds {
			logger.Warn("tool round limit reached", "sequence", seq, "limit", s.config.MaxToolRounds)
			break
		}

		resp, sent, err := s.generate(ctx, contents)
		if err != nil {
			return nil, err
		}
		contents = sent
		if resp.UsageMetadata != nil {
			result.TotalTokens += resp.UsageMetadata.TotalTokenCount
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			break
		}
		content := resp.Candidates[0].Content

		var calls []*genai.FunctionCall
		for _, part := range content.Parts {
			switch {
			case part.FunctionCall != nil:
				calls = append(calls, part.FunctionCall)
			case part.Text != "" && !part.Thought:
				texts = append(texts, part.Text)
			}
		}
		if len(calls) == 0 {
			break
		}

		contents = append(contents, content)
		responses := make([]*genai.Part, 0, len(calls))
		for _, fc := range calls {
			fr, call := s.dispatch(ctx, *fc, seq)
			result.ToolCalls = append(result.ToolCalls, call)
			responses = append(responses, &genai.Part{FunctionResponse: fr})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responses})
	}

	result.Text = strings.Join(texts, "")
	modelParts := []*genai.Part{}
	if result.Text != "" {
		modelParts = append(modelParts, genai.NewPartFromText(result.Text))
	}
	s.conv.AddModelMessage(seq, modelParts...)
	result.Latency = time.Since(started)

	logger.Debug("turn finished",
		"sequence", seq,
		"tool_calls", len(result.ToolCalls),
		"total_tokens", result.TotalTokens,
		"latency", result.Latency,
	)

	return result, nil
}

// pairFunctionCalls answers every logged function call that has no
// response in the log. Successful calls are recorded without one, but
// the model expects each call to be followed by its response. Only the
// request is changed.
func pairFunctionCalls(contents []*genai.Content) []*genai.Content {
	paired := make([]*genai.Content, 0, len(contents))
	for i, c := range contents {
		paired = append(paired, c)

		var next *genai.Content
		if i+1 < len(contents) {
			next = contents[i+1]
		}
		for _, p := range c.Parts {
			if p.FunctionCall == nil || respondsTo(next, p.FunctionCall.Name) {
				continue
			}
			paired = append(paired, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromFunctionResponse(p.FunctionCall.Name, map[string]any{"success": true})},
			})
		}
	}
	return paired
}

func respondsTo(c *genai.Content, name string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse != nil && p.FunctionResponse.Name == name {
			return true
		}
	}
	return false
}

// generate sends one request. On a token limit error the request contents
// are compressed and the request is retried once; the compressed contents
// are returned so later rounds of the turn reuse them.
func (s *Session) generate(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, []*genai.Content, error) {
	resp, err := s.gemini.GenerateContent(ctx, contents, s.requestConfig(ctx))
	if err == nil {
		return resp, contents, nil
	}
	if !isTokenLimitError(err) {
		return nil, nil, goerr.Wrap(err, "failed to generate content")
	}

	logging.From(ctx).Warn("token limit exceeded, compressing request history", "contents", len(contents))
	compressed, cErr := compressHistory(ctx, s.gemini, contents)
	if cErr != nil {
		return nil, nil, goerr.Wrap(cErr, "failed to compress history", goerr.V("cause", err.Error()))
	}

	resp, err = s.gemini.GenerateContent(ctx, compressed, s.requestConfig(ctx))
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to generate content after compression")
	}
	return resp, compressed, nil
}

// requestConfig is rebuilt for every request so that prompt and memory
// edits made by tools take effect within the same turn
func (s *Session) requestConfig(ctx context.Context) *genai.GenerateContentConfig {
	var blocks []string
	if full, ok := s.conv.FullPrompt(); ok {
		blocks = append(blocks, full)
	}
	if prompts := s.registry.Prompts(ctx); prompts != "" {
		blocks = append(blocks, prompts)
	}

	return s.config.generateConfig(strings.Join(blocks, "\n\n"), s.registry.Specs())
}

// dispatch executes one function call and converts the outcome into the
// response fed back to the model
func (s *Session) dispatch(ctx context.Context, fc genai.FunctionCall, seq model.Sequence) (*genai.FunctionResponse, ToolCall) {
	logger := logging.From(ctx)
	call := ToolCall{Name: fc.Name, Args: fc.Args}

	resp, err := s.execute(ctx, fc, seq)
	if err != nil {
		logger.Warn("tool call failed", "function", fc.Name, "error", err)
		call.Message = err.Error()
		return &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: model.FailureResponse(err),
		}, call
	}

	logger.Debug("tool call succeeded", "function", fc.Name)
	call.Success = true
	if msg, ok := resp.Response["message"].(string); ok {
		call.Message = msg
	}
	resp.ID = fc.ID
	return resp, call
}

// execute checks the policy and runs the call. Session operations log
// themselves; calls to other tools are logged here. Unknown names go
// through the conversation so the call and its failure are both recorded.
// Calls rejected by the policy never reach the log.
func (s *Session) execute(ctx context.Context, fc genai.FunctionCall, seq model.Sequence) (*genai.FunctionResponse, error) {
	decision, err := s.policy.Evaluate(ctx, &policy.Input{
		SessionID: s.conv.ID(),
		Sequence:  seq,
		Name:      fc.Name,
		Args:      fc.Args,
		Artifacts: s.conv.ArtifactIDs(),
	})
	if err != nil {
		return nil, err
	}
	if decision.Denied() {
		return nil, goerr.Wrap(model.ErrPolicyDenied, strings.Join(decision.Reasons, "; "), goerr.V("function", fc.Name))
	}

	resp, err := s.registry.Execute(ctx, fc)
	switch {
	case errors.Is(err, model.ErrUnknownFunction):
		_, err = s.conv.Call(ctx, fc.Name, fc.Args, seq)

	case !model.IsSessionFunction(fc.Name):
		s.conv.AddFunctionCall(fc.Name, fc.Args, seq)
		if err != nil {
			s.conv.AddFunctionResponse(fc.Name, model.FailureResponse(err), seq)
		} else {
			s.conv.AddFunctionResponse(fc.Name, resp.Response, seq)
		}
	}

	return resp, err
}
