package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/engramlabs/engram/pkg/usecase/memory"
)

func statsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "stats",
		Usage: "Show memory store statistics",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			// Stats never embeds, so no provider client is needed
			engine := memory.New(repo, nil)

			stats, err := engine.Stats(ctx)
			if err != nil {
				return err
			}

			printStats(c.Root().Writer, stats)
			return nil
		},
	}
}

func printStats(w io.Writer, stats *memory.Stats) {
	fmt.Fprintf(w, "Total memories: %d\n", stats.TotalRecords)
	if !stats.Latest.IsZero() {
		fmt.Fprintf(w, "Latest insert:  %s\n", stats.Latest.Format("2006-01-02 15:04:05 MST"))
	}

	if len(stats.Sources) == 0 {
		return
	}

	sources := make([]string, 0, len(stats.Sources))
	for source := range stats.Sources {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	fmt.Fprintf(w, "By source:\n")
	for _, source := range sources {
		fmt.Fprintf(w, "  %-24s %d\n", source, stats.Sources[source])
	}
}
