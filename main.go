package main

import (
	"os"

	"github.com/agentlab/gauntlet/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
