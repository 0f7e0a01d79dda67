package main

import (
	"os"

	"github.com/bianoble/template-cleanup/cmd/template-cleanup/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
