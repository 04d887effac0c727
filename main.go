package main

import (
	"os"

	"github.com/compozy/graphsync/cli"
	"github.com/compozy/graphsync/pkg/logger"
)

func main() {
	cmd, err := cli.RootCmd().ExecuteC()
	if err != nil {
		logger.FromContext(cmd.Context()).Error("Command failed", "command", cmd.CommandPath(), "error", err)
		os.Exit(1)
	}
}
