package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/usecase/chat"
	"github.com/urfave/cli/v3"
)

func artifactCommand() *cli.Command {
	var (
		cfg        config
		sessionID  string
		artifactID string
		at         int64
		before     int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Session ID",
			Sources:     cli.EnvVars("QUILL_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Artifact ID. Lists artifacts when omitted",
			Destination: &artifactID,
		},
		&cli.IntFlag{
			Name:        "at",
			Usage:       "Show content as of this sequence",
			Destination: &at,
		},
		&cli.IntFlag{
			Name:        "before",
			Usage:       "Show content just before this sequence",
			Destination: &before,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "artifact",
		Usage: "Show artifacts of a session at any point in time",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if c.IsSet("at") && c.IsSet("before") {
				return goerr.New("--at and --before are mutually exclusive")
			}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			conv, err := chat.LoadSession(ctx, storage, model.SessionID(sessionID))
			if err != nil {
				return err
			}

			if artifactID == "" {
				printArtifacts(c.Root().Writer, conv.ArtifactIDs(), conv.Versions)
				return nil
			}

			id := model.ArtifactID(artifactID)
			var (
				content string
				ok      bool
			)
			switch {
			case c.IsSet("at"):
				content, ok = conv.ArtifactAt(id, model.Sequence(at))
			case c.IsSet("before"):
				content, ok = conv.ArtifactBefore(id, model.Sequence(before))
			default:
				content, ok = conv.Artifact(id)
			}
			if !ok {
				return goerr.Wrap(model.ErrNotFound, "artifact does not exist at that point",
					goerr.V("artifact_id", id),
					goerr.V("at", at),
					goerr.V("before", before))
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", content)
			return nil
		},
	}
}

func printArtifacts(w io.Writer, ids []model.ArtifactID, versions func(model.ArtifactID) []model.Version) {
	if len(ids) == 0 {
		fmt.Fprintf(w, "No artifacts\n")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%d versions\n", id, len(versions(id)))
	}
}
