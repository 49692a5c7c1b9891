package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/quill/pkg/prompt"
	"github.com/urfave/cli/v3"
)

func promptsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "prompts",
		Usage: "List prompt stacks and their prompts",
		Flags: promptFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			names, err := prompt.ListStacks(cfg.promptDir)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintf(c.Root().Writer, "No prompt stacks in %s\n", cfg.promptDir)
				return nil
			}

			for _, name := range names {
				stack, err := prompt.LoadStack(cfg.promptDir, name)
				if err != nil {
					return err
				}
				for i, p := range stack.Prompts {
					mark := ""
					if i == 0 {
						mark = "\t(default)"
					}
					fmt.Fprintf(c.Root().Writer, "%s/%s%s\n", stack.Name, p.Name, mark)
				}
			}
			return nil
		},
	}
}
