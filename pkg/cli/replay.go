package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func replayCommand() *cli.Command {
	var (
		cfg    config
		input  string
		output string
		save   bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Event log, snapshot JSON or saved context (history=...) file",
			Destination: &input,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Write the rebuilt snapshot here instead of stdout",
			Destination: &output,
		},
		&cli.BoolFlag{
			Name:        "save",
			Usage:       "Also store the rebuilt session in storage",
			Destination: &save,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, promptFlags(&cfg)...)

	return &cli.Command{
		Name:  "replay",
		Usage: "Rebuild a session from an event log and export its snapshot",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			data, err := os.ReadFile(input)
			if err != nil {
				return goerr.Wrap(err, "failed to read input", goerr.V("path", input))
			}

			systemPrompt, err := cfg.systemPrompt()
			if err != nil {
				return err
			}

			conv := conversation.New(conversation.WithSystemPrompt(systemPrompt))
			if err := conv.Import(ctx, data); err != nil {
				return goerr.Wrap(err, "failed to import session", goerr.V("path", input))
			}

			exported, err := conv.Export()
			if err != nil {
				return err
			}

			var w io.Writer = c.Root().Writer
			if output != "" {
				if err := os.WriteFile(output, append(exported, '\n'), 0644); err != nil {
					return goerr.Wrap(err, "failed to write output", goerr.V("path", output))
				}
			} else {
				if _, err := w.Write(append(exported, '\n')); err != nil {
					return goerr.Wrap(err, "failed to write snapshot")
				}
			}

			if save {
				storage, err := cfg.newStorage(ctx)
				if err != nil {
					return err
				}
				if err := chat.SaveSession(ctx, storage, conv); err != nil {
					return err
				}
				logging.From(ctx).Info("session saved", "session_id", conv.ID())
			}
			return nil
		},
	}
}
