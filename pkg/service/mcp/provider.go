package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/tool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

// Provider exposes tools of connected MCP servers as a chat tool
type Provider struct {
	client *Client
	tools  map[string]*remoteTool
	decls  []*genai.FunctionDeclaration
}

var _ tool.Tool = (*Provider)(nil)

type remoteTool struct {
	server string
	name   string
}

// NewProvider collects the tools of every connected server. A tool name
// advertised by more than one server is an error.
func NewProvider(client *Client) (*Provider, error) {
	p := &Provider{
		client: client,
		tools:  make(map[string]*remoteTool),
	}

	for _, serverName := range client.Servers() {
		tools, err := client.Tools(serverName)
		if err != nil {
			return nil, err
		}

		for _, t := range tools {
			if _, dup := p.tools[t.Name]; dup || model.IsSessionFunction(t.Name) {
				return nil, goerr.Wrap(model.ErrDuplicateID, "MCP tool name conflicts with another tool",
					goerr.V("server", serverName),
					goerr.V("tool", t.Name))
			}

			decl, err := functionDeclaration(t)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert MCP tool",
					goerr.V("server", serverName),
					goerr.V("tool", t.Name))
			}

			p.tools[t.Name] = &remoteTool{server: serverName, name: t.Name}
			p.decls = append(p.decls, decl)
		}
	}

	return p, nil
}

func functionDeclaration(t *mcp.Tool) (*genai.FunctionDeclaration, error) {
	decl := &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
	}
	if t.InputSchema == nil {
		return decl, nil
	}

	// InputSchema arrives as decoded JSON on the client side
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal input schema")
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal input schema")
	}

	params, err := tool.ConvertSchema(&schema)
	if err != nil {
		return nil, err
	}
	decl.Parameters = params
	return decl, nil
}

// Spec returns nil when no server advertised a tool
func (p *Provider) Spec() *genai.Tool {
	if len(p.decls) == 0 {
		return nil
	}
	return &genai.Tool{FunctionDeclarations: p.decls}
}

func (p *Provider) Prompt(ctx context.Context) string {
	return ""
}

// Execute forwards the call to the server that advertised the tool. A tool
// result flagged as an error becomes a Go error carrying its text.
func (p *Provider) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	target, ok := p.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(model.ErrUnknownFunction, "MCP tool not found", goerr.V("name", fc.Name))
	}

	result, err := p.client.CallTool(ctx, target.server, target.name, fc.Args)
	if err != nil {
		return nil, err
	}

	text := resultText(result)
	if result.IsError {
		return nil, goerr.New("MCP tool reported an error",
			goerr.V("server", target.server),
			goerr.V("tool", target.name),
			goerr.V("message", text))
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": text},
	}, nil
}

func resultText(result *mcp.CallToolResult) string {
	var texts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Close disconnects from all servers
func (p *Provider) Close() error {
	return p.client.Close()
}
