package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/engramlabs/engram/pkg/usecase/memory"
)

func searchCommand() *cli.Command {
	var (
		cfg   config
		query string
		limit int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Natural language query to search memories",
			Sources:     cli.EnvVars("ENGRAM_SEARCH_QUERY"),
			Destination: &query,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of memories to return",
			Value:       10,
			Sources:     cli.EnvVars("ENGRAM_SEARCH_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "search",
		Usage: "Search memories by vector similarity",
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

			out, err := engine.Search(ctx, query, int(limit))
			if err != nil {
				return err
			}

			if out.Fallback {
				fmt.Fprintf(c.Root().Writer, "note: vector index unavailable, results from text fallback\n")
			}

			if len(out.Results) == 0 {
				fmt.Fprintf(c.Root().Writer, "No memories found\n")
				return nil
			}

			fmt.Fprint(c.Root().Writer, memory.FormatForPrompt(out.Results))
			return nil
		},
	}
}
