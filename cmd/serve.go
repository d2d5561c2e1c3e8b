package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/libreria/internal/config"
	"github.com/mrlokans/libreria/internal/entrypoint"
)

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Starts the HTTP server together with the task queue and the orphan
payload sweep schedule. Stops gracefully on interrupt.`,
		Example: `  # Serve on the default port 3000
  libreria serve

  # Keep uploaded files on disk instead of in the database
  PAYLOAD_MODE=disk UPLOADS_DIR=./uploads libreria serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(cmd.Context(), config.NewConfig(), version)
		},
	}
}
