package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quill/pkg/adapter"
	"google.golang.org/genai"
)

func TestNewGeminiValidation(t *testing.T) {
	ctx := context.Background()

	_, err := adapter.NewGemini(ctx, "", "us-central1")
	gt.Error(t, err)

	_, err = adapter.NewGeminiWithAPIKey(ctx, "")
	gt.Error(t, err)
}

func TestGenerateContent(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)
	gt.Equal(t, client.Model(), adapter.DefaultGenerativeModel)

	contents := []*genai.Content{
		genai.NewContentFromText("Reply with the single word: quill", genai.RoleUser),
	}

	resp, err := client.GenerateContent(ctx, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("You are terse.", ""),
	})
	gt.NoError(t, err)

	if resp == nil ||
		len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].Text == "" {
		t.Fatal("unexpected response")
	}

	t.Log("response:", resp.Candidates[0].Content.Parts[0].Text)
}
