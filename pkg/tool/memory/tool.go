// Package memory exposes system prompt editing and memory management to the LLM
package memory

import (
	"context"

	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/tool"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	"google.golang.org/genai"
)

// Tool provides edit_system_prompt and memory_twizzle
type Tool struct {
	session *conversation.Session
}

// New creates the memory tool bound to a conversation session
func New(session *conversation.Session) *Tool {
	return &Tool{session: session}
}

var _ tool.Tool = (*Tool)(nil)

func memorySchema() *genai.Schema {
	schema := tool.MustSchemaFor[model.MemoryArgs]()
	if mode, ok := schema.Properties["mode"]; ok {
		mode.Enum = []string{
			string(model.MemoryModeNew),
			string(model.MemoryModeEdit),
			string(model.MemoryModeDelete),
		}
	}
	return schema
}

// Spec returns the tool specification for Gemini function calling
func (t *Tool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        model.FuncEditSystemPrompt,
				Description: "Edit your own system prompt. Each substitution must match exactly once, otherwise nothing is changed.",
				Parameters:  tool.MustSchemaFor[model.EditSystemPromptArgs](),
			},
			{
				Name: model.FuncMemoryTwizzle,
				Description: "Manage persistent memories appended to your system prompt. " +
					"Use mode new to add a memory, edit to replace one and delete to remove one. Memory IDs are never reused.",
				Parameters: memorySchema(),
			},
		},
	}
}

// Prompt returns nothing; memories are already part of the system prompt
func (t *Tool) Prompt(ctx context.Context) string {
	return ""
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
