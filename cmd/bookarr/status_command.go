package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"bookarr/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := ctx.apiGet("/api/status", &status); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running (pid %d)\n", status.PID)
			fmt.Fprintf(out, "Database: %s\n", status.DatabasePath)

			autosync := "disabled"
			if status.Autosync.Enabled {
				autosync = fmt.Sprintf("every %dh", status.Autosync.IntervalHours)
			}
			if status.Autosync.Running {
				autosync += " (sync in progress)"
			}
			fmt.Fprintf(out, "Autosync: %s\n", autosync)
			if last := status.Autosync.LastResult; last != nil {
				if last.Error != "" {
					fmt.Fprintf(out, "Last sync: failed: %s\n", last.Error)
				} else {
					fmt.Fprintf(out, "Last sync: %d authors added, %d books added\n",
						last.Summary.AuthorsAdded, last.Summary.BooksAdded)
				}
			}

			statuses := make([]string, 0, len(status.JobCounts))
			for name := range status.JobCounts {
				statuses = append(statuses, name)
			}
			sort.Strings(statuses)
			rows := make([][]string, 0, len(statuses))
			for _, name := range statuses {
				rows = append(rows, []string{name, strconv.Itoa(status.JobCounts[name])})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderListing([]string{"Status", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
