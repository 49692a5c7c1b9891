package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/policy"
	"github.com/m-mizutani/quill/pkg/service/mcp"
	"github.com/m-mizutani/quill/pkg/tool"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

func chatCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
		attach    []string
		mcpConfig string
		policyDir string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"id"},
			Usage:       "Session ID to resume",
			Sources:     cli.EnvVars("QUILL_SESSION_ID"),
			Destination: &sessionID,
		},
		&cli.StringSliceFlag{
			Name:        "attach",
			Aliases:     []string{"a"},
			Usage:       "File attached to the first message (repeatable)",
			Destination: &attach,
		},
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "Path to YAML file listing external MCP servers",
			Sources:     cli.EnvVars("QUILL_MCP_CONFIG"),
			Destination: &mcpConfig,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies that gate tool calls",
			Sources:     cli.EnvVars("QUILL_POLICY_DIR"),
			Destination: &policyDir,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, promptFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with artifacts and memories",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			// Initialize dependencies
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			chatConfig, err := cfg.loadChatConfig()
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx, chatConfig.Model)
			if err != nil {
				return err
			}

			conv, err := cfg.openConversation(ctx, storage, model.SessionID(sessionID))
			if err != nil {
				return err
			}

			attachments, err := loadAttachments(attach)
			if err != nil {
				return err
			}

			toolPolicy, err := policy.Load(ctx, policyDir)
			if err != nil {
				return err
			}

			var extraTools []tool.Tool
			provider, err := mcp.LoadAndConnect(ctx, mcpConfig, Version)
			if err != nil {
				return err
			}
			if provider != nil {
				defer func() {
					if err := provider.Close(); err != nil {
						logging.From(ctx).Warn("failed to close MCP connections", "error", err)
					}
				}()
				extraTools = append(extraTools, provider)
			}

			session, err := chat.New(chat.NewInput{
				Gemini:       gemini,
				Storage:      storage,
				Config:       chatConfig,
				Conversation: conv,
				ExtraTools:   extraTools,
				Policy:       toolPolicy,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to create chat session")
			}

			return runREPL(ctx, c.Root().Writer, session, attachments)
		},
	}
}

func runREPL(ctx context.Context, w io.Writer, session *chat.Session, attachments []*genai.Part) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "/exit",
	})
	if err != nil {
		return goerr.Wrap(err, "failed to initialize readline")
	}
	defer rl.Close()

	conv := session.Conversation()
	fmt.Fprintf(w, "Session %s started. Commands: /save, /artifacts, /exit\n", conv.ID())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		message := strings.TrimSpace(line)
		switch message {
		case "":
			continue
		case "/exit":
			return saveAndExit(ctx, w, session)
		case "/save":
			if err := session.Save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(w, "Saved session %s\n", conv.ID())
			continue
		case "/artifacts":
			printArtifacts(w, conv.ArtifactIDs(), conv.Versions)
			continue
		}

		spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = " thinking..."
		spin.Start()
		result, err := session.Send(ctx, message, attachments...)
		spin.Stop()
		if err != nil {
			logging.From(ctx).Error("failed to process message", "error", err)
			continue
		}
		attachments = nil

		for _, call := range result.ToolCalls {
			status := "ok"
			if !call.Success {
				status = "failed: " + call.Message
			}
			fmt.Fprintf(w, "  [%s] %s\n", call.Name, status)
		}
		if result.Text != "" {
			fmt.Fprintf(w, "%s\n", result.Text)
		}
		logging.From(ctx).Debug("turn completed",
			"sequence", result.Sequence,
			"total_tokens", result.TotalTokens,
			"latency", result.Latency)
	}

	return saveAndExit(ctx, w, session)
}

func saveAndExit(ctx context.Context, w io.Writer, session *chat.Session) error {
	if err := session.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nSession %s saved\n", session.Conversation().ID())
	return nil
}

// loadAttachments reads files as inline data parts
func loadAttachments(paths []string) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read attachment", goerr.V("path", path))
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}
	return parts, nil
}
