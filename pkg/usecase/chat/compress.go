package chat

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/adapter"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	"google.golang.org/genai"
)

// summarizedShare is the share of request bytes, counted from the oldest
// content, that is replaced by a summary
const summarizedShare = 0.7

const summaryPrefix = "Summary of the earlier conversation:\n\n"

//go:embed prompt/summarize.md
var summarizeInstruction string

// isTokenLimitError reports whether Gemini rejected a request for its size,
// e.g. "The input token count (2500030) exceeds the maximum number of
// tokens allowed (1048576)."
func isTokenLimitError(err error) bool {
	var apiErr genai.APIError
	if err == nil || !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != http.StatusBadRequest || apiErr.Status != "INVALID_ARGUMENT" {
		return false
	}

	msg := apiErr.Message
	return strings.HasPrefix(msg, "The input token count (") &&
		strings.Contains(msg, "exceeds the maximum number of tokens allowed")
}

// splitPoint returns the index of the first content kept verbatim. A
// function response is never separated from the call before it. ok is
// false when nothing or everything would be summarized.
func splitPoint(contents []*genai.Content) (int, bool) {
	sizes := make([]int, len(contents))
	total := 0
	for i, c := range contents {
		if data, err := json.Marshal(c); err == nil {
			sizes[i] = len(data)
		}
		total += sizes[i]
	}

	limit := int(float64(total) * summarizedShare)
	split, acc := 0, 0
	for i, size := range sizes {
		acc += size
		if acc >= limit {
			split = i + 1
			break
		}
	}

	for split > 0 && split < len(contents) && carriesFunctionResponse(contents[split]) {
		split++
	}
	return split, split > 0 && split < len(contents)
}

func carriesFunctionResponse(c *genai.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse != nil {
			return true
		}
	}
	return false
}

// compressHistory summarizes the oldest part of a request. It only
// rewrites the request contents; the conversation log is untouched.
func compressHistory(ctx context.Context, gemini adapter.Gemini, contents []*genai.Content) ([]*genai.Content, error) {
	if len(contents) == 0 {
		return nil, goerr.New("history is empty")
	}

	split, ok := splitPoint(contents)
	if !ok {
		return nil, goerr.New("insufficient content to compress", goerr.V("contents", len(contents)))
	}

	summary, err := summarizeContents(ctx, gemini, contents[:split])
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize contents", goerr.V("summarized", split))
	}
	logging.From(ctx).Info("request history compressed",
		"summarized", split,
		"kept", len(contents)-split,
		"summary_bytes", len(summary))

	compressed := []*genai.Content{
		genai.NewContentFromText(summaryPrefix+summary, genai.RoleUser),
	}
	return append(compressed, contents[split:]...), nil
}

// summarizeContents asks the model for a plain-text summary of contents
func summarizeContents(ctx context.Context, gemini adapter.Gemini, contents []*genai.Content) (string, error) {
	request := append(append([]*genai.Content{}, contents...),
		genai.NewContentFromText(summarizeInstruction, genai.RoleUser))

	resp, err := gemini.GenerateContent(ctx, request, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("You summarize conversations between a user and a writing assistant.", ""),
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr[int32](0),
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("no summary generated")
	}

	var texts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" && !p.Thought {
			texts = append(texts, p.Text)
		}
	}
	if len(texts) == 0 {
		return "", goerr.New("empty summary generated")
	}
	return strings.Join(texts, ""), nil
}
