package chat

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/adapter"
	"google.golang.org/genai"
	"gopkg.in/yaml.v3"
)

// Config holds generation settings of a chat session.
// IncludeFunctionHistory sends logged function calls with the history.
// Calls that succeeded have no response in the log and are sent with a
// generic success response.
type Config struct {
	Model                  string  `yaml:"model"`
	Temperature            float32 `yaml:"temperature"`
	TopP                   float32 `yaml:"top_p"`
	TopK                   float32 `yaml:"top_k"`
	MaxOutputTokens        int32   `yaml:"max_output_tokens"`
	IncludeFunctionHistory bool    `yaml:"include_function_history"`
	MaxToolRounds          int     `yaml:"max_tool_rounds"`
}

// DefaultConfig returns the default generation settings
func DefaultConfig() *Config {
	return &Config{
		Model:           adapter.DefaultGenerativeModel,
		Temperature:     1.25,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 8192,
		MaxToolRounds:   8,
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read chat config", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse chat config", goerr.V("path", path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid chat config", goerr.V("path", path))
	}

	return cfg, nil
}

// Validate checks value ranges accepted by Gemini
func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return goerr.New("temperature must be between 0 and 2", goerr.V("temperature", c.Temperature))
	}
	if c.TopP < 0 || c.TopP > 1 {
		return goerr.New("top_p must be between 0 and 1", goerr.V("top_p", c.TopP))
	}
	if c.TopK < 0 {
		return goerr.New("top_k must not be negative", goerr.V("top_k", c.TopK))
	}
	if c.MaxOutputTokens <= 0 {
		return goerr.New("max_output_tokens must be positive", goerr.V("max_output_tokens", c.MaxOutputTokens))
	}
	if c.MaxToolRounds <= 0 {
		return goerr.New("max_tool_rounds must be positive", goerr.V("max_tool_rounds", c.MaxToolRounds))
	}
	return nil
}

// generateConfig builds the request config. systemPrompt is omitted when empty.
func (c *Config) generateConfig(systemPrompt string, tools []*genai.Tool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.Temperature),
		TopP:            genai.Ptr(c.TopP),
		TopK:            genai.Ptr(c.TopK),
		MaxOutputTokens: c.MaxOutputTokens,
		Tools:           tools,
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, "")
	}
	return config
}
