package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bookarr/internal/api"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the canonical library into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result api.SyncResponse
			if err := ctx.apiPost("/api/library/sync", map[string]bool{"dryRun": dryRun}, &result); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			verb := "Synced"
			if result.DryRun {
				verb = "Would sync"
			}
			fmt.Fprintf(out, "%s library: %d authors added, %d books added, %d updated, %d skipped\n",
				verb,
				result.Summary.AuthorsAdded,
				result.Summary.BooksAdded,
				result.Summary.BooksUpdated,
				result.Summary.ItemsSkipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing them")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
