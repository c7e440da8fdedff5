package main

import (
	"os"

	"github.com/secmon-lab/devlink/pkg/cli"
)

func main() {
	if err := cli.New().Run(os.Args); err != nil {
		os.Exit(1)
	}
}
