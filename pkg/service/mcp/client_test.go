package mcp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/service/mcp"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

type lookupParams struct {
	Word string `json:"word" jsonschema:"Word to look up"`
}

func newLookupServer() *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "dictionary", Version: "1.0.0"}, nil)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "lookup",
		Description: "Look up a word",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, params *lookupParams) (*mcpsdk.CallToolResult, any, error) {
		if params.Word == "" {
			return nil, nil, errors.New("word is empty")
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: params.Word + ": a unit of language"},
			},
		}, nil, nil
	})
	return server
}

func connectInMemory(t *testing.T, client *mcp.Client, name string, server *mcpsdk.Server) {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	gt.NoError(t, client.ConnectTransport(ctx, name, clientTransport))
}

func TestHTTPStreamableTransport(t *testing.T) {
	ctx := context.Background()

	conv := conversation.New()
	conv.AddUserMessage(genai.NewPartFromText("hello"))
	server, err := mcp.NewServer(conv, "test")
	gt.NoError(t, err)

	handler := mcpsdk.NewStreamableHTTPHandler(func(r *http.Request) *mcpsdk.Server {
		return server
	}, nil)
	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	client := mcp.NewClient("test")
	gt.NoError(t, client.Connect(ctx, mcp.ServerConfig{
		Name:      "quill",
		Transport: "http",
		URL:       testServer.URL,
	}))

	gt.Equal(t, client.Servers(), []string{"quill"})
	tools, err := client.Tools("quill")
	gt.NoError(t, err)
	gt.A(t, tools).Length(4)

	result, err := client.CallTool(ctx, "quill", "create_artifact", map[string]any{
		"id":       "remote",
		"contents": "over http",
	})
	gt.NoError(t, err)
	gt.False(t, result.IsError)

	content, ok := conv.Artifact("remote")
	gt.True(t, ok)
	gt.Equal(t, content, "over http")

	// close the client before the test server to allow clean shutdown
	gt.NoError(t, client.Close())
}

func TestConnectValidation(t *testing.T) {
	ctx := context.Background()
	client := mcp.NewClient("test")

	testCases := []struct {
		name string
		cfg  mcp.ServerConfig
	}{
		{"stdio without command", mcp.ServerConfig{Name: "a", Transport: "stdio"}},
		{"http without url", mcp.ServerConfig{Name: "b", Transport: "http"}},
		{"unknown transport", mcp.ServerConfig{Name: "c", Transport: "carrier-pigeon"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Error(t, client.Connect(ctx, tc.cfg))
		})
	}
	gt.A(t, client.Servers()).Length(0)
}

func TestProviderExecute(t *testing.T) {
	ctx := context.Background()
	client := mcp.NewClient("test")
	connectInMemory(t, client, "dictionary", newLookupServer())
	defer client.Close()

	provider, err := mcp.NewProvider(client)
	gt.NoError(t, err)

	spec := provider.Spec()
	gt.NotNil(t, spec)
	gt.A(t, spec.FunctionDeclarations).Length(1)
	decl := spec.FunctionDeclarations[0]
	gt.Equal(t, decl.Name, "lookup")
	gt.NotNil(t, decl.Parameters)
	gt.Map(t, decl.Parameters.Properties).HasKey("word")

	t.Run("success", func(t *testing.T) {
		resp, err := provider.Execute(ctx, genai.FunctionCall{
			Name: "lookup",
			Args: map[string]any{"word": "quill"},
		})
		gt.NoError(t, err)
		gt.Equal(t, resp.Name, "lookup")
		gt.Equal(t, resp.Response["result"], any("quill: a unit of language"))
	})

	t.Run("tool error", func(t *testing.T) {
		_, err := provider.Execute(ctx, genai.FunctionCall{
			Name: "lookup",
			Args: map[string]any{"word": ""},
		})
		gt.Error(t, err)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := provider.Execute(ctx, genai.FunctionCall{Name: "define"})
		gt.True(t, errors.Is(err, model.ErrUnknownFunction))
	})
}

func TestProviderRejectsConflictingNames(t *testing.T) {
	client := mcp.NewClient("test")
	connectInMemory(t, client, "first", newLookupServer())
	connectInMemory(t, client, "second", newLookupServer())
	defer client.Close()

	_, err := mcp.NewProvider(client)
	gt.True(t, errors.Is(err, model.ErrDuplicateID))
}

func TestProviderRejectsSessionToolNames(t *testing.T) {
	server, err := mcp.NewServer(conversation.New(), "test")
	gt.NoError(t, err)

	client := mcp.NewClient("test")
	connectInMemory(t, client, "quill", server)
	defer client.Close()

	_, err = mcp.NewProvider(client)
	gt.True(t, errors.Is(err, model.ErrDuplicateID))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`servers:
  - name: files
    transport: stdio
    command: ["mcp-files", "--root", "/tmp"]
    env:
      LOG_LEVEL: debug
  - name: search
    transport: http
    url: http://localhost:8080/mcp
`), 0644))

	cfg, err := mcp.LoadConfig(path)
	gt.NoError(t, err)
	gt.A(t, cfg.Servers).Length(2)
	gt.Equal(t, cfg.Servers[0].Command, []string{"mcp-files", "--root", "/tmp"})
	gt.Equal(t, cfg.Servers[0].Env["LOG_LEVEL"], "debug")
	gt.Equal(t, cfg.Servers[1].URL, "http://localhost:8080/mcp")

	_, err = mcp.LoadConfig(filepath.Join(dir, "missing.yaml"))
	gt.Error(t, err)
}

func TestLoadAndConnectWithoutConfig(t *testing.T) {
	provider, err := mcp.LoadAndConnect(context.Background(), "", "test")
	gt.NoError(t, err)
	gt.Nil(t, provider)
}
