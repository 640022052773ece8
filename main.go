package main

import (
	"os"

	"github.com/chainpkg/chainpkg/internal/cli"
)

// version, commit, and date are set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if code := cli.Execute(version, commit, date); code != 0 {
		os.Exit(code)
	}
}
