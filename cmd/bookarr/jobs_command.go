package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"bookarr/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List acquisition jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			for _, status := range statuses {
				query.Add("status", status)
			}
			path := "/api/jobs"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			var listing api.JobListResponse
			if err := ctx.apiGet(path, &listing); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, listing)
			}

			out := cmd.OutOrStdout()
			if len(listing.Jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}

			rows := make([][]string, 0, len(listing.Jobs))
			for _, job := range listing.Jobs {
				detail := job.ErrorMessage
				if detail == "" {
					detail = job.TransferID
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.Title,
					job.Status,
					detail,
				})
			}
			fmt.Fprintln(out, renderListing(
				[]string{"ID", "Title", "Status", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
