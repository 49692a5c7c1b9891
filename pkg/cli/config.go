package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/adapter"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/prompt"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Storage
	storage string

	// Logging
	logLevel  string
	logFormat string

	// Adapters
	geminiProject  string
	geminiLocation string
	geminiAPIKey   string
	chatConfig     string

	// Prompt
	promptDir string
	prompt    string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage",
			Aliases:     []string{"s"},
			Usage:       "Session storage: gs://bucket[/prefix] or a local directory",
			Value:       ".quill",
			Sources:     cli.EnvVars("QUILL_STORAGE"),
			Destination: &cfg.storage,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("QUILL_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("QUILL_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key. Used instead of Vertex AI when set",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "chat-config",
			Usage:       "Path to YAML file with generation settings",
			Sources:     cli.EnvVars("QUILL_CHAT_CONFIG"),
			Destination: &cfg.chatConfig,
		},
	}
}

// promptFlags returns flags to select a system prompt from a prompt stack
func promptFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt-dir",
			Usage:       "Directory of prompt stacks",
			Value:       "prompts",
			Sources:     cli.EnvVars("QUILL_PROMPT_DIR"),
			Destination: &cfg.promptDir,
		},
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "System prompt as stack[/prompt]",
			Sources:     cli.EnvVars("QUILL_PROMPT"),
			Destination: &cfg.prompt,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr, logging.WithFormat(logging.ParseFormat(cfg.logFormat)))
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.storage == "" {
		return nil, goerr.New("storage is required")
	}

	storage, err := adapter.NewStorageFromURL(ctx, cfg.storage)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage", goerr.V("storage", cfg.storage))
	}
	return storage, nil
}

// loadChatConfig reads generation settings, falling back to the defaults
func (cfg *config) loadChatConfig() (*chat.Config, error) {
	return chat.LoadConfig(cfg.chatConfig)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context, generativeModel string) (adapter.Gemini, error) {
	opt := adapter.WithGenerativeModel(generativeModel)
	if cfg.geminiAPIKey != "" {
		client, err := adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opt)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project or gemini-api-key is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opt)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// systemPrompt resolves the selected prompt. No selection is an empty prompt.
func (cfg *config) systemPrompt() (string, error) {
	if cfg.prompt == "" {
		return "", nil
	}

	p, err := prompt.Select(cfg.promptDir, cfg.prompt)
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

// openConversation loads a stored session, or starts a new one when id is
// empty. A selected prompt goes through baseline detection so edits made
// in the conversation survive while the same prompt stays selected.
func (cfg *config) openConversation(ctx context.Context, storage adapter.Storage, id model.SessionID) (*conversation.Session, error) {
	systemPrompt, err := cfg.systemPrompt()
	if err != nil {
		return nil, err
	}

	if id == "" {
		return conversation.New(conversation.WithSystemPrompt(systemPrompt)), nil
	}

	conv, err := chat.LoadSession(ctx, storage, id, conversation.WithSystemPrompt(systemPrompt))
	if err != nil {
		return nil, err
	}
	if systemPrompt != "" && conv.SetSystemPrompt(systemPrompt) {
		logging.From(ctx).Info("system prompt replaced by the selected prompt", "session_id", id, "prompt", cfg.prompt)
	}
	return conv, nil
}
