package mcp

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer exposes the artifact, prompt and memory operations of a
// conversation session as MCP tools. Calls are recorded at the session's
// current sequence.
func NewServer(session *conversation.Session, version string) (*mcp.Server, error) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "quill",
		Version: version,
	}, nil)

	memorySchema, err := jsonschema.For[model.MemoryArgs](nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to infer memory_twizzle schema")
	}
	if mode, ok := memorySchema.Properties["mode"]; ok {
		mode.Enum = []any{
			string(model.MemoryModeNew),
			string(model.MemoryModeEdit),
			string(model.MemoryModeDelete),
		}
	}

	h := &handler{session: session}

	mcp.AddTool(server, &mcp.Tool{
		Name:        model.FuncCreateArtifact,
		Description: "Create a new named text artifact. The ID must not be in use yet.",
	}, h.createArtifact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        model.FuncEditArtifact,
		Description: "Edit an artifact with global substitutions (every occurrence) followed by single substitutions (exactly one occurrence). Nothing is saved if any single substitution fails.",
	}, h.editArtifact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        model.FuncEditSystemPrompt,
		Description: "Edit the system prompt. Each substitution must match exactly once.",
	}, h.editSystemPrompt)

	mcp.AddTool(server, &mcp.Tool{
		Name:        model.FuncMemoryTwizzle,
		Description: "Create, edit or delete a memory appended to the system prompt.",
		InputSchema: memorySchema,
	}, h.memory)

	return server, nil
}

type handler struct {
	session *conversation.Session
}

type responder interface {
	Response() map[string]any
}

func (h *handler) result(ctx context.Context, name string, r responder, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		logging.From(ctx).Warn("MCP tool call failed", "function", name, "error", err)
		return nil, nil, err
	}

	resp := r.Response()
	text, mErr := json.Marshal(resp)
	if mErr != nil {
		return nil, nil, goerr.Wrap(mErr, "failed to marshal tool response", goerr.V("function", name))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(text)},
		},
	}, nil, nil
}

func (h *handler) createArtifact(ctx context.Context, req *mcp.CallToolRequest, args *model.CreateArtifactArgs) (*mcp.CallToolResult, any, error) {
	r, err := h.session.CreateArtifact(ctx, *args, h.session.CurrentSequence())
	return h.result(ctx, model.FuncCreateArtifact, r, err)
}

func (h *handler) editArtifact(ctx context.Context, req *mcp.CallToolRequest, args *model.EditArtifactArgs) (*mcp.CallToolResult, any, error) {
	r, err := h.session.EditArtifact(ctx, *args, h.session.CurrentSequence())
	return h.result(ctx, model.FuncEditArtifact, r, err)
}

func (h *handler) editSystemPrompt(ctx context.Context, req *mcp.CallToolRequest, args *model.EditSystemPromptArgs) (*mcp.CallToolResult, any, error) {
	r, err := h.session.EditSystemPrompt(ctx, *args, h.session.CurrentSequence())
	return h.result(ctx, model.FuncEditSystemPrompt, r, err)
}

func (h *handler) memory(ctx context.Context, req *mcp.CallToolRequest, args *model.MemoryArgs) (*mcp.CallToolResult, any, error) {
	r, err := h.session.Memory(ctx, *args, h.session.CurrentSequence())
	return h.result(ctx, model.FuncMemoryTwizzle, r, err)
}
