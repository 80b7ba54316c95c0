package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/usecase/memory"
)

func newCommand() *cli.Command {
	var (
		cfg  config
		text string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "text",
			Aliases:     []string{"t"},
			Usage:       "Text of the memory to insert",
			Destination: &text,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "new",
		Usage: "Insert a memory record manually",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			engine := memory.New(repo, embedder)

			record, err := engine.Insert(ctx, text, map[string]string{
				model.MetaSource: model.SourceManual,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Memory created: %s\n", record.ID)
			return nil
		},
	}
}
