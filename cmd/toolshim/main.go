package main

import (
	"os"

	"github.com/psantana5/toolshim/cmd/toolshim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(cmd.ExitCode())
}
