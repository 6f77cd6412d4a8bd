package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookarr/internal/api"
)

func newAuthorsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authors",
		Short: "Manage monitored authors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthorsList(cmd, ctx, false)
		},
	}

	cmd.AddCommand(newAuthorsListCommand(ctx))
	cmd.AddCommand(newAuthorsAddCommand(ctx))
	cmd.AddCommand(newAuthorsMissingCommand(ctx))
	return cmd
}

func newAuthorsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored authors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthorsList(cmd, ctx, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func runAuthorsList(cmd *cobra.Command, ctx *commandContext, jsonOut bool) error {
	var listing api.AuthorListResponse
	if err := ctx.apiGet("/api/authors", &listing); err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(cmd, listing)
	}

	out := cmd.OutOrStdout()
	if len(listing.Authors) == 0 {
		fmt.Fprintln(out, "No authors")
		return nil
	}
	rows := make([][]string, 0, len(listing.Authors))
	for _, author := range listing.Authors {
		rows = append(rows, []string{
			strconv.FormatInt(author.ID, 10),
			author.Name,
			author.ExternalID,
			strconv.Itoa(author.BookCount),
		})
	}
	fmt.Fprintln(out, renderListing(
		[]string{"ID", "Name", "External ID", "Books"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
	return nil
}

func newAuthorsAddCommand(ctx *commandContext) *cobra.Command {
	var externalID string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a monitored author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var created api.AuthorResponse
			body := map[string]string{
				"name":       strings.TrimSpace(args[0]),
				"externalId": strings.TrimSpace(externalID),
			}
			if err := ctx.apiPost("/api/authors", body, &created); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added author %s (id %d)\n", created.Author.Name, created.Author.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&externalID, "external-id", "", "Bibliography provider identifier")
	return cmd
}

func newAuthorsMissingCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "missing <author-id>",
		Short: "List an author's missing works",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid author id %q", args[0])
			}

			var result api.MissingWorksResponse
			if err := ctx.apiGet(fmt.Sprintf("/api/authors/%d/missing", id), &result); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			if len(result.Works) == 0 {
				fmt.Fprintln(out, "Nothing missing")
				return nil
			}
			rows := make([][]string, 0, len(result.Works))
			for _, work := range result.Works {
				year := ""
				if work.FirstPublishYear > 0 {
					year = strconv.Itoa(work.FirstPublishYear)
				}
				rows = append(rows, []string{work.Title, year, work.Source})
			}
			fmt.Fprintln(out, renderListing(
				[]string{"Title", "Year", "Source"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
