package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func indexCommand() *cli.Command {
	var (
		cfg       config
		dimension int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "dimension",
			Usage:       "Vector dimension of the index",
			Value:       1536,
			Sources:     cli.EnvVars("ENGRAM_EMBEDDING_DIMENSION"),
			Destination: &dimension,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "index",
		Usage: "Create the vector index for similarity search if it does not exist",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			if err := repo.EnsureVectorIndex(ctx, int(dimension)); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Vector index ready (dimension %d). Index builds run asynchronously; searches fall back to text matching until the build completes.\n", dimension)
			return nil
		},
	}
}
