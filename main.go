package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/mrlokans/libreria/cmd"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	root := cmd.NewRootCmd(Version)

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(Version),
		fang.WithCommit(Commit),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
