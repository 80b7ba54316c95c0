package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/usecase/memory"
	"github.com/engramlabs/engram/pkg/usecase/syncer"
)

func syncCommand() *cli.Command {
	var (
		cfg          config
		messageLimit int64
		workers      int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "message-limit",
			Usage:       "Maximum number of agent messages to fetch",
			Value:       100,
			Sources:     cli.EnvVars("ENGRAM_SYNC_MESSAGE_LIMIT"),
			Destination: &messageLimit,
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "Number of concurrent embed-and-store workers",
			Value:       4,
			Sources:     cli.EnvVars("ENGRAM_SYNC_WORKERS"),
			Destination: &workers,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)
	flags = append(flags, agentFlags(&cfg)...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Pull agent memory blocks and chat history into the memory store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			agentCfg, err := model.LoadAgentConfig(cfg.agentConfigPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load agent config, run 'engram setup' first")
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			agent, err := cfg.newAgent()
			if err != nil {
				return err
			}

			engine := memory.New(repo, embedder)
			coordinator := syncer.New(agent, engine, repo, agentCfg.AgentID,
				syncer.WithMessageLimit(int(messageLimit)),
				syncer.WithWorkers(int(workers)),
			)

			report, err := coordinator.Sync(ctx)
			if err != nil {
				return goerr.Wrap(err, "sync failed")
			}

			printReport(c.Root().Writer, report)
			return nil
		},
	}
}

func printReport(w io.Writer, report *syncer.Report) {
	fmt.Fprintf(w, "Sync completed in %s: %d synced, %d skipped, %d errors\n",
		report.Duration.Round(time.Millisecond), report.ItemsSynced, report.ItemsSkipped, len(report.Errors))
	for _, e := range report.Errors {
		text := e.Text
		if len(text) > 60 {
			text = text[:60] + "..."
		}
		fmt.Fprintf(w, "  failed: %q: %s\n", text, e.Err.Error())
	}
}
