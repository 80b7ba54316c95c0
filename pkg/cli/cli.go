package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "engram",
		Usage: "Memory synchronization and retrieval engine for conversational agents",
		Commands: []*cli.Command{
			setupCommand(),
			chatCommand(),
			syncCommand(),
			searchCommand(),
			newCommand(),
			indexCommand(),
			statsCommand(),
			exportCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
