package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/cliutil"
)

// newRequestsCmd manages connection requests from self-registered displays
func newRequestsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"request", "req"},
		Short:   "Approve or reject displays waiting for approval",
	}

	cmd.AddCommand(
		newRequestsListCmd(a),
		newRequestsApproveCmd(a),
		newRequestsRejectCmd(a),
	)
	return cmd
}

func newRequestsListCmd(a *app) *cobra.Command {
	var (
		status string
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connection requests",
		Example: `  # Displays waiting for approval
  adsignctl requests list

  # Every request, as JSON
  adsignctl requests list --status= -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			requests, err := c.ListRequests(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("error listing requests: %w", err)
			}

			if output == "json" {
				return cliutil.PrintJSON(cmd.OutOrStdout(), requests)
			}
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()
			fmt.Fprintln(tw, "ID\tDISPLAY\tNAME\tLOCATION\tSTATUS\tREQUESTED\tREASON")
			for _, r := range requests {
				requested := r.RequestedAt
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID,
					r.DisplayID,
					cliutil.OrDash(r.DisplayName),
					cliutil.OrDash(r.Location),
					r.Status,
					cliutil.FormatAge(&requested, a.now()),
					cliutil.OrDash(r.RejectionReason))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(v1alpha1.ConnectionRequestPending), "Filter by status (pending, approved, rejected; empty for all)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func newRequestsApproveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "approve REQUEST_ID",
		Short: "Approve a request and take ownership of the display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.ApproveRequest(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error approving request: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Display %q approved\n", d.DisplayID)
			return nil
		},
	}
}

func newRequestsRejectCmd(a *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject REQUEST_ID",
		Short: "Reject a request",
		Example: `  adsignctl requests reject 4b0f... --reason="not one of ours"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			r, err := c.RejectRequest(cmd.Context(), args[0], reason)
			if err != nil {
				return fmt.Errorf("error rejecting request: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request for display %q rejected\n", r.DisplayID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to the display")
	return cmd
}
