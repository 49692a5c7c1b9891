// Package mcp connects quill to the Model Context Protocol. The client side
// turns tools of external MCP servers into chat tools; the server side
// exposes a conversation's artifact and memory operations to MCP clients.
package mcp

import (
	"context"
	"os"
	"os/exec"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

// Client holds sessions to external MCP servers keyed by server name
type Client struct {
	version string
	servers map[string]*server
}

type server struct {
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

// ServerConfig describes one external MCP server
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   []string          `yaml:"command"`
	URL       string            `yaml:"url"`
	Env       map[string]string `yaml:"env"`
}

// Config is the MCP configuration file
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

// NewClient creates a client that announces itself with version
func NewClient(version string) *Client {
	return &Client{
		version: version,
		servers: make(map[string]*server),
	}
}

// Connect opens a session to a server described by cfg
func (c *Client) Connect(ctx context.Context, cfg ServerConfig) error {
	var transport mcp.Transport
	switch cfg.Transport {
	case "stdio":
		if len(cfg.Command) == 0 {
			return goerr.New("command is required for stdio transport", goerr.V("server", cfg.Name))
		}
		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcp.CommandTransport{Command: cmd}

	case "http":
		if cfg.URL == "" {
			return goerr.New("url is required for http transport", goerr.V("server", cfg.Name))
		}
		transport = &mcp.StreamableClientTransport{Endpoint: cfg.URL}

	default:
		return goerr.New("unsupported transport",
			goerr.V("server", cfg.Name),
			goerr.V("transport", cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}

	return c.ConnectTransport(ctx, cfg.Name, transport)
}

// ConnectTransport opens a session over an already built transport
func (c *Client) ConnectTransport(ctx context.Context, name string, transport mcp.Transport) error {
	if name == "" {
		return goerr.New("server name is required")
	}
	if _, exists := c.servers[name]; exists {
		return goerr.New("server already connected", goerr.V("server", name))
	}

	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    "quill",
		Version: c.version,
	}, nil)

	session, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to MCP server", goerr.V("server", name))
	}

	listed, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return goerr.Wrap(err, "failed to list tools", goerr.V("server", name))
	}

	c.servers[name] = &server{
		session: session,
		tools:   listed.Tools,
	}
	return nil
}

// Servers returns connected server names in sorted order
func (c *Client) Servers() []string {
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the tools a server advertised when connecting
func (c *Client) Tools(serverName string) ([]*mcp.Tool, error) {
	srv, ok := c.servers[serverName]
	if !ok {
		return nil, goerr.New("server not found", goerr.V("server", serverName))
	}
	return srv.tools, nil
}

// CallTool invokes a tool on a connected server
func (c *Client) CallTool(ctx context.Context, serverName, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	srv, ok := c.servers[serverName]
	if !ok {
		return nil, goerr.New("server not found", goerr.V("server", serverName))
	}

	result, err := srv.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call MCP tool",
			goerr.V("server", serverName),
			goerr.V("tool", toolName))
	}
	return result, nil
}

// Close closes every session. The first failure is returned after all
// sessions were attempted.
func (c *Client) Close() error {
	var firstErr error
	for name, srv := range c.servers {
		if err := srv.session.Close(); err != nil && firstErr == nil {
			firstErr = goerr.Wrap(err, "failed to close session", goerr.V("server", name))
		}
	}
	c.servers = make(map[string]*server)
	return firstErr
}

// LoadConfig reads an MCP configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read MCP config file", goerr.V("path", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse MCP config file", goerr.V("path", path))
	}
	return &cfg, nil
}

// LoadAndConnect connects to every server in the config file. Servers that
// fail to connect are skipped with a warning. It returns nil without error
// when path is empty or nothing could be connected.
func LoadAndConnect(ctx context.Context, path, version string) (*Provider, error) {
	if path == "" {
		return nil, nil
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	logger := logging.From(ctx)
	if len(cfg.Servers) == 0 {
		logger.Info("no MCP servers configured", "path", path)
		return nil, nil
	}

	client := NewClient(version)
	for _, srv := range cfg.Servers {
		if err := client.Connect(ctx, srv); err != nil {
			logger.Warn("failed to connect to MCP server", "server", srv.Name, "error", err)
			continue
		}
		logger.Info("connected to MCP server", "server", srv.Name)
	}

	if len(client.Servers()) == 0 {
		logger.Warn("no MCP servers connected", "configured", len(cfg.Servers))
		return nil, nil
	}

	provider, err := NewProvider(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return provider, nil
}
