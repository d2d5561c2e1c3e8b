package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/libreria/internal/config"
	"github.com/mrlokans/libreria/internal/entrypoint"
)

func newSweepUploadsCmd() *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "sweep-uploads",
		Short: "Remove payload files no book references",
		Long: `Scans UPLOADS_DIR and deletes files that no primary book points to.
Files younger than the grace period are kept, since an upload in progress
writes its file before its record.`,
		Example: `  # Sweep with the configured SWEEP_GRACE_PERIOD
  libreria sweep-uploads

  # Only remove orphans older than a day
  libreria sweep-uploads --grace 24h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			if cmd.Flags().Changed("grace") {
				cfg.Sweep.GracePeriod = grace
			}

			app, err := entrypoint.Open(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Sweeper().Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d files in %s: removed %d, failed %d\n",
				result.Scanned, app.Payloads.Root(), result.Removed, result.Failed)
			if result.Failed > 0 {
				return fmt.Errorf("%d files could not be removed", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", 0, "Keep files younger than this (default SWEEP_GRACE_PERIOD)")

	return cmd
}
