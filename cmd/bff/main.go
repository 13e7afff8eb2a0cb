package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRunCmd()
	root.Version = version + " (" + commit + ")"
	root.AddCommand(newSysreqCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
