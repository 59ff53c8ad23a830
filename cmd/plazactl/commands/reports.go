package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"plaza.social/internal/moderation"
)

func newReportsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Args:  cobra.NoArgs,
		Short: "Inspect moderation reports",
	}
	cmd.AddCommand(newReportsListCommand(opts))
	return cmd
}

func newReportsListCommand(opts *rootOptions) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		Short:   "List reports, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.actor == "" {
				return errors.New("--as is required")
			}
			f := moderation.Filter{Limit: limit}
			if status != "" {
				s, err := moderation.ParseReportStatus(status)
				if err != nil {
					return err
				}
				f.Status = s
			}
			a, err := opts.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, actor, err := a.AccessFor(cmd.Context(), opts.actor)
			if err != nil {
				return err
			}
			reports, err := a.Reports.ListReports(ctx, actor, f)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCONTENT\tREPORTED\tCREATED\tREASON")
			for _, r := range reports {
				fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s\t%s\t%s\n",
					r.ID, r.Status, r.Content.Kind, r.Content.ID, r.ReportedUserID,
					r.CreatedAt.UTC().Format(time.RFC3339), r.Reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending, investigating, resolved or rejected")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of reports")
	return cmd
}
