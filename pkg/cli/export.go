package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/usecase/memory"
)

func exportCommand() *cli.Command {
	var (
		cfg    config
		bucket string
		object string
		limit  int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Aliases:     []string{"b"},
			Usage:       "Cloud Storage bucket for the snapshot",
			Sources:     cli.EnvVars("ENGRAM_EXPORT_BUCKET"),
			Destination: &bucket,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "object",
			Aliases:     []string{"o"},
			Usage:       "Object name of the snapshot (default: timestamped)",
			Sources:     cli.EnvVars("ENGRAM_EXPORT_OBJECT"),
			Destination: &object,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of records to export",
			Value:       10000,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export recent memories as a JSONL snapshot to Cloud Storage",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			storage, err := adapter.NewStorage(ctx, bucket)
			if err != nil {
				return goerr.Wrap(err, "failed to create storage client")
			}

			if object == "" {
				object = fmt.Sprintf("engram/memories-%s.jsonl", time.Now().UTC().Format("20060102-150405"))
			}

			engine := memory.New(repo, nil)
			n, err := engine.Export(ctx, storage, object, int(limit))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Exported %d records to gs://%s/%s\n", n, bucket, object)
			return nil
		},
	}
}
