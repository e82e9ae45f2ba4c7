package main

import (
	"os"

	"github.com/adamancini/appimageupdate/internal/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Cobra prints the error itself.
	if err := cmd.Execute(version, commit, date); err != nil {
		os.Exit(1)
	}
}
