package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	serve := newServeCmd(version)

	cmd := &cobra.Command{
		Use:   "libreria",
		Short: "Document-sharing backend for books, blobs and links",
		Long: `Libreria stores uploaded books as files on disk, blobs in SQLite or links to
external locations, lists them by category and serves downloads uniformly.

Running without a subcommand starts the HTTP server. Configuration is read
from the environment; a .env file in the working directory is loaded first.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE:         serve.RunE,
		SilenceUsage: true,
	}

	cmd.AddCommand(serve)
	cmd.AddCommand(newSweepUploadsCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}
