package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/tool"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	"google.golang.org/genai"
)

// mockGemini is a mock implementation of adapter.Gemini for testing
type mockGemini struct {
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

type request struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// scriptedGemini returns the given responses in order and records every request
func scriptedGemini(responses ...*genai.GenerateContentResponse) (*mockGemini, *[]request) {
	var requests []request
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			requests = append(requests, request{contents: contents, config: config})
			if len(requests) > len(responses) {
				return nil, errors.New("unexpected request")
			}
			return responses[len(requests)-1], nil
		},
	}
	return mock, &requests
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 10},
	}
}

func callResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{genai.NewPartFromFunctionCall(name, args)},
			},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 5},
	}
}

func functionResponses(c *genai.Content) []*genai.FunctionResponse {
	var resps []*genai.FunctionResponse
	for _, p := range c.Parts {
		if p.FunctionResponse != nil {
			resps = append(resps, p.FunctionResponse)
		}
	}
	return resps
}

func TestSendText(t *testing.T) {
	ctx := context.Background()
	mock, requests := scriptedGemini(textResponse("Hello!"))
	session, err := chat.New(chat.NewInput{Gemini: mock})
	gt.NoError(t, err)

	result, err := session.Send(ctx, "hi")
	gt.NoError(t, err)
	gt.Equal(t, result.Text, "Hello!")
	gt.Equal(t, result.Sequence, model.Sequence(1))
	gt.Equal(t, result.TotalTokens, int32(10))

	gt.A(t, *requests).Length(1)
	cfg := (*requests)[0].config
	gt.Nil(t, cfg.SystemInstruction)
	gt.Equal(t, *cfg.Temperature, float32(1.25))
	gt.Equal(t, *cfg.TopK, float32(40))
	gt.Equal(t, cfg.MaxOutputTokens, int32(8192))
	gt.A(t, cfg.Tools).Length(2)

	events := session.Conversation().Events()
	gt.A(t, events).Length(2)
	gt.Equal(t, events[1].Role(), model.RoleModel)
	gt.Equal(t, events[1].Sequence(), model.Sequence(1))
}

func TestSendAttachments(t *testing.T) {
	mock, requests := scriptedGemini(textResponse("nice picture"))
	session, err := chat.New(chat.NewInput{Gemini: mock})
	gt.NoError(t, err)

	_, err = session.Send(context.Background(), "look", genai.NewPartFromBytes([]byte{0x89, 0x50}, "image/png"))
	gt.NoError(t, err)

	user := (*requests)[0].contents[0]
	gt.A(t, user.Parts).Length(2)
	gt.Equal(t, user.Parts[1].InlineData.MIMEType, "image/png")

	_, err = session.Send(context.Background(), "")
	gt.Error(t, err)
}

func TestSendToolCalls(t *testing.T) {
	ctx := context.Background()
	mock, requests := scriptedGemini(
		callResponse(model.FuncCreateArtifact, map[string]any{"id": "poem", "contents": "roses are red"}),
		callResponse(model.FuncEditArtifact, map[string]any{
			"id":                   "poem",
			"single_substitutions": []any{map[string]any{"from_str": "violets", "to_str": "x"}},
		}),
		textResponse("Here is your poem."),
	)
	conv := conversation.New(conversation.WithSystemPrompt("You write poems."))
	session, err := chat.New(chat.NewInput{Gemini: mock, Conversation: conv})
	gt.NoError(t, err)

	result, err := session.Send(ctx, "write a poem")
	gt.NoError(t, err)
	gt.Equal(t, result.Text, "Here is your poem.")
	gt.Equal(t, result.TotalTokens, int32(20))
	gt.A(t, result.ToolCalls).Length(2)
	gt.True(t, result.ToolCalls[0].Success)
	gt.False(t, result.ToolCalls[1].Success)
	gt.S(t, result.ToolCalls[1].Message).Contains("violets")

	content, ok := conv.Artifact("poem")
	gt.True(t, ok)
	gt.Equal(t, content, "roses are red")

	// the second request carries the first call and its response
	second := (*requests)[1].contents
	gt.A(t, second).Length(3)
	resps := functionResponses(second[2])
	gt.A(t, resps).Length(1)
	gt.Equal(t, resps[0].Response["success"], any(true))

	// artifacts are listed in the system instruction
	gt.S(t, (*requests)[1].config.SystemInstruction.Parts[0].Text).Contains("You write poems.")
	gt.S(t, (*requests)[1].config.SystemInstruction.Parts[0].Text).Contains("`poem`")

	third := (*requests)[2].contents
	resps = functionResponses(third[len(third)-1])
	gt.Equal(t, resps[0].Response["success"], any(false))

	// log: user, create call, edit call, edit failure, model
	var roles []model.Role
	for _, ev := range conv.Events() {
		roles = append(roles, ev.Role())
		gt.Equal(t, ev.Sequence(), model.Sequence(1))
	}
	gt.Equal(t, roles, []model.Role{
		model.RoleUser,
		model.RoleFunction,
		model.RoleFunction,
		model.RoleFunctionResponse,
		model.RoleModel,
	})
}

func TestSendPromptEditVisibleWithinTurn(t *testing.T) {
	mock, requests := scriptedGemini(
		callResponse(model.FuncEditSystemPrompt, map[string]any{
			"substitutions": []any{map[string]any{"from_str": "terse", "to_str": "chatty"}},
		}),
		callResponse(model.FuncMemoryTwizzle, map[string]any{"mode": "new", "contents": "likes tea"}),
		textResponse("ok"),
	)
	conv := conversation.New(conversation.WithSystemPrompt("You are terse."))
	session, err := chat.New(chat.NewInput{Gemini: mock, Conversation: conv})
	gt.NoError(t, err)

	_, err = session.Send(context.Background(), "be chatty and remember tea")
	gt.NoError(t, err)

	gt.Equal(t, (*requests)[0].config.SystemInstruction.Parts[0].Text, "You are terse.")
	gt.Equal(t, (*requests)[1].config.SystemInstruction.Parts[0].Text, "You are chatty.")
	gt.Equal(t, (*requests)[2].config.SystemInstruction.Parts[0].Text,
		"You are chatty.\n\nYour memories are as follows:\n\n[MEMORY ID: 1]\nlikes tea")
}

func TestSendUnknownTool(t *testing.T) {
	mock, _ := scriptedGemini(
		callResponse("delete_everything", map[string]any{"force": true}),
		textResponse("sorry"),
	)
	session, err := chat.New(chat.NewInput{Gemini: mock})
	gt.NoError(t, err)

	result, err := session.Send(context.Background(), "go")
	gt.NoError(t, err)
	gt.False(t, result.ToolCalls[0].Success)

	events := session.Conversation().Events()
	gt.A(t, events).Length(4)
	resp := events[2].(*model.FunctionResponseEvent)
	gt.Equal(t, resp.Name, "delete_everything")
	gt.Equal(t, resp.Response["success"], any(false))
}

type echoTool struct{}

func (echoTool) Spec() *genai.Tool {
	return &genai.Tool{FunctionDeclarations: []*genai.FunctionDeclaration{{Name: "echo"}}}
}

func (echoTool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	return &genai.FunctionResponse{Name: fc.Name, Response: map[string]any{"echo": fc.Args["text"]}}, nil
}

func (echoTool) Prompt(ctx context.Context) string { return "" }

func TestSendExtraTool(t *testing.T) {
	mock, _ := scriptedGemini(
		callResponse("echo", map[string]any{"text": "ping"}),
		textResponse("pong"),
	)
	session, err := chat.New(chat.NewInput{Gemini: mock, ExtraTools: []tool.Tool{echoTool{}}})
	gt.NoError(t, err)

	_, err = session.Send(context.Background(), "echo ping")
	gt.NoError(t, err)

	events := session.Conversation().Events()
	gt.A(t, events).Length(4)
	call := events[1].(*model.FunctionCallEvent)
	gt.Equal(t, call.Name, "echo")
	resp := events[2].(*model.FunctionResponseEvent)
	gt.Equal(t, resp.Response["echo"], any("ping"))
}

func TestSendToolRoundLimit(t *testing.T) {
	call := callResponse(model.FuncMemoryTwizzle, map[string]any{"mode": "new", "contents": "again"})
	mock, requests := scriptedGemini(call, call, call)
	cfg := chat.DefaultConfig()
	cfg.MaxToolRounds = 2

	session, err := chat.New(chat.NewInput{Gemini: mock, Config: cfg})
	gt.NoError(t, err)

	result, err := session.Send(context.Background(), "loop")
	gt.NoError(t, err)
	gt.A(t, *requests).Length(2)
	gt.A(t, result.ToolCalls).Length(2)
	gt.Equal(t, result.Text, "")

	events := session.Conversation().Events()
	gt.Equal(t, events[len(events)-1].Role(), model.RoleModel)
}

func TestSendCompressesOnTokenLimit(t *testing.T) {
	ctx := context.Background()
	conv := conversation.New()
	for _, text := range []string{"first question", "second question", "third question"} {
		seq := conv.AddUserMessage(genai.NewPartFromText(text + " with some padding to make it long enough"))
		conv.AddModelMessage(seq, genai.NewPartFromText("an answer with some padding to make it long enough"))
	}

	tokenLimit := genai.APIError{
		Code:    400,
		Status:  "INVALID_ARGUMENT",
		Message: "The input token count (2500030) exceeds the maximum number of tokens allowed (1048576).",
	}
	var calls int
	var final []*genai.Content
	mock := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			switch calls {
			case 1:
				return nil, tokenLimit
			case 2:
				return textResponse("earlier questions were answered"), nil
			default:
				final = contents
				return textResponse("done"), nil
			}
		},
	}

	session, err := chat.New(chat.NewInput{Gemini: mock, Conversation: conv})
	gt.NoError(t, err)

	result, err := session.Send(ctx, "fourth question")
	gt.NoError(t, err)
	gt.Equal(t, result.Text, "done")
	gt.Equal(t, calls, 3)
	gt.S(t, final[0].Parts[0].Text).Contains("earlier questions were answered")

	// the event log keeps every message
	gt.A(t, conv.Events()).Length(8)
}

func TestSendGenerateError(t *testing.T) {
	mock := &mockGemini{}
	session, err := chat.New(chat.NewInput{Gemini: mock})
	gt.NoError(t, err)

	_, err = session.Send(context.Background(), "hi")
	gt.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := chat.New(chat.NewInput{})
	gt.Error(t, err)

	cfg := chat.DefaultConfig()
	cfg.MaxToolRounds = 0
	_, err = chat.New(chat.NewInput{Gemini: &mockGemini{}, Config: cfg})
	gt.Error(t, err)
}

func TestSendPairsLoggedFunctionCalls(t *testing.T) {
	ctx := context.Background()
	conv := conversation.New()
	seq := conv.AddUserMessage(genai.NewPartFromText("write a poem"))
	_, err := conv.CreateArtifact(ctx, model.CreateArtifactArgs{ID: "poem", Contents: "roses are red"}, seq)
	gt.NoError(t, err)
	_, err = conv.EditArtifact(ctx, model.EditArtifactArgs{ID: "missing"}, seq)
	gt.Error(t, err)
	logged := len(conv.Events())

	mock, requests := scriptedGemini(textResponse("ok"))
	cfg := chat.DefaultConfig()
	cfg.IncludeFunctionHistory = true
	session, err := chat.New(chat.NewInput{Gemini: mock, Config: cfg, Conversation: conv})
	gt.NoError(t, err)

	_, err = session.Send(ctx, "next")
	gt.NoError(t, err)

	contents := (*requests)[0].contents
	gt.A(t, contents).Length(6)
	gt.Equal(t, contents[1].Parts[0].FunctionCall.Name, model.FuncCreateArtifact)

	// the successful call gets a generated response
	generated := functionResponses(contents[2])
	gt.A(t, generated).Length(1)
	gt.Equal(t, generated[0].Name, model.FuncCreateArtifact)
	gt.Equal(t, generated[0].Response["success"], any(true))

	// the failed call keeps its logged response only
	gt.Equal(t, contents[3].Parts[0].FunctionCall.Name, model.FuncEditArtifact)
	logResp := functionResponses(contents[4])
	gt.A(t, logResp).Length(1)
	gt.Equal(t, logResp[0].Response["success"], any(false))
	gt.Equal(t, contents[5].Parts[0].Text, "next")

	// nothing generated reaches the log
	gt.A(t, session.Conversation().Events()).Length(logged + 2)
}
