package cli

import (
	"context"

	"github.com/m-mizutani/quill/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Version is reported to MCP peers
const Version = "0.1.0"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:    "quill",
		Usage:   "Conversation log with versioned artifacts and memories",
		Version: Version,
		Commands: []*cli.Command{
			chatCommand(),
			listCommand(),
			historyCommand(),
			artifactCommand(),
			replayCommand(),
			mcpCommand(),
			promptsCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)

		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
