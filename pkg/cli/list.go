package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List stored sessions",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			ids, err := chat.ListSessions(ctx, storage)
			if err != nil {
				return goerr.Wrap(err, "failed to list sessions")
			}

			if len(ids) == 0 {
				fmt.Fprintf(c.Root().Writer, "No sessions found in %s\n", cfg.storage)
				return nil
			}
			for _, id := range ids {
				fmt.Fprintf(c.Root().Writer, "%s\n", id)
			}
			return nil
		},
	}
}
