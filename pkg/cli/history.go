package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"id"},
			Usage:       "Session ID to show events of",
			Sources:     cli.EnvVars("QUILL_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Show the event log of a session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			conv, err := chat.LoadSession(ctx, storage, model.SessionID(sessionID))
			if err != nil {
				return err
			}

			events := conv.Events()
			if len(events) == 0 {
				fmt.Fprintf(c.Root().Writer, "No events in session %s\n", sessionID)
				return nil
			}

			for _, ev := range events {
				fmt.Fprintf(c.Root().Writer, "%d\t%s\t%s\n", ev.Sequence(), ev.Role(), model.DisplayText(ev))
			}
			return nil
		},
	}
}
