package main

import (
	"context"
	"os"

	"github.com/db4dd/db4dd/pkg/cli"
)

var version = "dev"

func main() {
	if err := cli.Run(context.Background(), os.Args, version); err != nil {
		os.Exit(1)
	}
}
