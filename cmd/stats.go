package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrlokans/libreria/internal/config"
	"github.com/mrlokans/libreria/internal/entrypoint"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print book and visitor totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := entrypoint.Open(config.NewConfig())
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Books:      %d (%d primary, %d linked)\n",
				stats.PrimaryBooks+stats.LinkedBooks, stats.PrimaryBooks, stats.LinkedBooks)
			fmt.Fprintf(out, "Categories: %d", len(stats.Categories))
			if len(stats.Categories) > 0 {
				fmt.Fprintf(out, " (%s)", strings.Join(stats.Categories, ", "))
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Visitors:   %d\n", stats.Visitors)
			return nil
		},
	}
}
