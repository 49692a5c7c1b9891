// Package artifact exposes artifact creation and editing to the LLM
package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/tool"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	"google.golang.org/genai"
)

// Tool provides create_artifact and edit_artifact
type Tool struct {
	session *conversation.Session
}

// New creates the artifact tool bound to a conversation session
func New(session *conversation.Session) *Tool {
	return &Tool{session: session}
}

var _ tool.Tool = (*Tool)(nil)

// Spec returns the tool specification for Gemini function calling
func (t *Tool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        model.FuncCreateArtifact,
				Description: "Create a new named text artifact such as a document, code file or poem. The ID must not be in use yet.",
				Parameters:  tool.MustSchemaFor[model.CreateArtifactArgs](),
			},
			{
				Name: model.FuncEditArtifact,
				Description: "Edit an existing artifact with find and replace. Global substitutions replace every occurrence and are applied first. " +
					"Single substitutions must match exactly once. If any single substitution fails, no change is saved.",
				Parameters: tool.MustSchemaFor[model.EditArtifactArgs](),
			},
		},
	}
}

// Prompt lists the artifacts that currently exist
func (t *Tool) Prompt(ctx context.Context) string {
	ids := t.session.ArtifactIDs()
	if len(ids) == 0 {
		return ""
	}

	lines := []string{"### Artifacts", ""}
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("- `%s` (%d versions)", id, len(t.session.Versions(id))))
	}
	return strings.Join(lines, "\n")
}

// Execute runs the function at the session's current sequence
func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	resp, err := t.session.Call(ctx, fc.Name, fc.Args, t.session.CurrentSequence())
	if err != nil {
		return nil, err
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: resp,
	}, nil
}
