package main

import (
	"context"
	"os"

	"github.com/engramlabs/engram/pkg/cli"
)

func main() {
	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		os.Exit(err.Code)
	}
}
