package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/service/mcp"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"id"},
			Usage:       "Session ID to serve. A new session is created when omitted",
			Sources:     cli.EnvVars("QUILL_SESSION_ID"),
			Destination: &sessionID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, promptFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve artifact and memory tools of a session over MCP stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			conv, err := cfg.openConversation(ctx, storage, model.SessionID(sessionID))
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(conv, Version)
			if err != nil {
				return err
			}

			logger := logging.From(ctx).With("session_id", conv.ID())
			logger.Info("serving MCP over stdio")
			runErr := server.Run(ctx, &mcpsdk.StdioTransport{})

			if err := chat.SaveSession(ctx, storage, conv); err != nil {
				return err
			}
			logger.Info("session saved")

			if runErr != nil {
				return goerr.Wrap(runErr, "MCP server stopped")
			}
			return nil
		},
	}
}
