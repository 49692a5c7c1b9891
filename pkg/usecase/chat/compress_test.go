package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"google.golang.org/genai"
)

func TestIsTokenLimitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name: "token limit error",
			err: genai.APIError{
				Code:    400,
				Status:  "INVALID_ARGUMENT",
				Message: "The input token count (2500030) exceeds the maximum number of tokens allowed (1048576).",
			},
			expected: true,
		},
		{
			name: "400 INVALID_ARGUMENT but unrelated",
			err: genai.APIError{
				Code:    400,
				Status:  "INVALID_ARGUMENT",
				Message: "invalid parameter format",
			},
			expected: false,
		},
		{
			name: "500 error",
			err: genai.APIError{
				Code:    500,
				Status:  "INTERNAL_ERROR",
				Message: "internal server error",
			},
			expected: false,
		},
		{
			name:     "other error type",
			err:      errors.New("network timeout"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.V(t, chat.IsTokenLimitErrorForTest(tt.err)).Equal(tt.expected)
		})
	}
}

func TestCompressHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("empty history", func(t *testing.T) {
		_, err := chat.CompressHistoryForTest(ctx, &mockGemini{}, []*genai.Content{})
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("history is empty")
	})

	t.Run("successful compression", func(t *testing.T) {
		contents := []*genai.Content{
			genai.NewContentFromText("First user message", genai.RoleUser),
			genai.NewContentFromText("First model response", genai.RoleModel),
			genai.NewContentFromText("Second user message", genai.RoleUser),
			genai.NewContentFromText("Second model response", genai.RoleModel),
			genai.NewContentFromText("Third user message", genai.RoleUser),
			genai.NewContentFromText("Third model response", genai.RoleModel),
		}
		initialCount := len(contents)

		var requested []*genai.Content
		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				requested = contents
				return textResponse("The user asked three times."), nil
			},
		}

		compressed, err := chat.CompressHistoryForTest(ctx, mock, contents)
		gt.NoError(t, err)
		gt.True(t, len(compressed) < initialCount)

		gt.V(t, compressed[0].Role).Equal(genai.RoleUser)
		gt.A(t, compressed[0].Parts).Length(1)
		gt.S(t, compressed[0].Parts[0].Text).Contains("Summary of the earlier conversation")
		gt.S(t, compressed[0].Parts[0].Text).Contains("The user asked three times.")

		// the summarize request ends with the instruction
		gt.S(t, requested[len(requested)-1].Parts[0].Text).Contains("Summarize the conversation")

		// input is not modified
		gt.V(t, len(contents)).Equal(initialCount)
	})

	t.Run("function responses stay with their call", func(t *testing.T) {
		contents := []*genai.Content{
			genai.NewContentFromText("A long opening request with plenty of words in it to weigh a lot", genai.RoleUser),
			{Role: genai.RoleModel, Parts: []*genai.Part{genai.NewPartFromFunctionCall("create_artifact", map[string]any{"id": "doc"})}},
			{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromFunctionResponse("create_artifact", map[string]any{"success": true})}},
			genai.NewContentFromText("ok", genai.RoleModel),
			genai.NewContentFromText("next", genai.RoleUser),
		}

		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse("summary"), nil
			},
		}

		compressed, err := chat.CompressHistoryForTest(ctx, mock, contents)
		gt.NoError(t, err)
		for _, c := range compressed[1:] {
			for _, p := range c.Parts {
				gt.Nil(t, p.FunctionResponse)
			}
		}
	})

	t.Run("summary error", func(t *testing.T) {
		contents := []*genai.Content{
			genai.NewContentFromText("First message with enough content to make the byte size significant", genai.RoleUser),
			genai.NewContentFromText("Second message with enough content to make the byte size significant", genai.RoleModel),
			genai.NewContentFromText("Third message with enough content to make the byte size significant", genai.RoleUser),
			genai.NewContentFromText("Fourth message with enough content to make the byte size significant", genai.RoleModel),
			genai.NewContentFromText("Fifth message with enough content to make the byte size significant", genai.RoleUser),
		}

		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("API error")
			},
		}

		_, err := chat.CompressHistoryForTest(ctx, mock, contents)
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("failed to summarize")
	})

	t.Run("insufficient content to compress", func(t *testing.T) {
		contents := []*genai.Content{
			genai.NewContentFromText("x", genai.RoleUser),
		}

		_, err := chat.CompressHistoryForTest(ctx, &mockGemini{}, contents)
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("insufficient content")
	})
}

func TestSummarizeContents(t *testing.T) {
	ctx := context.Background()
	contents := []*genai.Content{
		genai.NewContentFromText("Draft a haiku", genai.RoleUser),
	}

	t.Run("thoughts are skipped", func(t *testing.T) {
		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{
					Candidates: []*genai.Candidate{{
						Content: &genai.Content{Parts: []*genai.Part{
							{Text: "thinking...", Thought: true},
							{Text: "A haiku was drafted."},
						}},
					}},
				}, nil
			},
		}

		summary, err := chat.SummarizeContentsForTest(ctx, mock, contents)
		gt.NoError(t, err)
		gt.Equal(t, summary, "A haiku was drafted.")
	})

	t.Run("API error", func(t *testing.T) {
		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("network error")
			},
		}

		_, err := chat.SummarizeContentsForTest(ctx, mock, contents)
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("failed to generate summary")
	})

	t.Run("empty response", func(t *testing.T) {
		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{}}, nil
			},
		}

		_, err := chat.SummarizeContentsForTest(ctx, mock, contents)
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("no summary generated")
	})
}
