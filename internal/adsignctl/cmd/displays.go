package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/cliutil"
)

// newDisplaysCmd manages the caller's displays
func newDisplaysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "displays",
		Aliases: []string{"display"},
		Short:   "Manage displays",
		Long: `Manage the displays assigned to you. Status shows the derived status: a
display that has not sent a heartbeat for two hours is offline whatever it
last reported.`,
	}

	cmd.AddCommand(
		newDisplaysListCmd(a),
		newDisplaysGetCmd(a),
		newDisplaysSummaryCmd(a),
		newDisplaysCreateCmd(a),
		newDisplaysStatusCmd(a, "disable", v1alpha1.DisplayStatusInactive, "Switch a display off"),
		newDisplaysStatusCmd(a, "enable", v1alpha1.DisplayStatusOffline, "Switch a display back on"),
		newDisplaysAssignLoopCmd(a),
		newDisplaysDeleteCmd(a),
	)
	return cmd
}

func newDisplaysListCmd(a *app) *cobra.Command {
	var (
		status string
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List displays",
		Example: `  # All displays
  adsignctl displays list

  # Displays switched off
  adsignctl displays list --status=inactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			displays, err := c.ListDisplays(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("error listing displays: %w", err)
			}

			if output == "json" {
				return cliutil.PrintJSON(cmd.OutOrStdout(), displays)
			}
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()
			fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tSTATUS\tLAST SEEN\tLOOP\tPLAYING")
			for _, d := range displays {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					d.DisplayID,
					d.DisplayName,
					cliutil.OrDash(d.Location),
					d.ActualStatus,
					cliutil.FormatAge(d.LastSeen, a.now()),
					cliutil.OrDash(d.CurrentLoop),
					cliutil.OrDash(d.CurrentAd))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by stored status (online, offline, inactive)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func newDisplaysGetCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get DISPLAY_ID",
		Short: "Show one display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.GetDisplay(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error getting display: %w", err)
			}

			if output == "json" {
				return cliutil.PrintJSON(cmd.OutOrStdout(), d)
			}
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()
			fmt.Fprintf(tw, "ID\t%s\n", d.DisplayID)
			fmt.Fprintf(tw, "NAME\t%s\n", d.DisplayName)
			fmt.Fprintf(tw, "LOCATION\t%s\n", cliutil.OrDash(d.Location))
			fmt.Fprintf(tw, "STATUS\t%s (reported %s)\n", d.ActualStatus, d.Status)
			fmt.Fprintf(tw, "LAST SEEN\t%s\n", cliutil.FormatAge(d.LastSeen, a.now()))
			fmt.Fprintf(tw, "RESOLUTION\t%dx%d\n", d.Resolution.Width, d.Resolution.Height)
			fmt.Fprintf(tw, "CONFIG\tbrightness=%d volume=%d refresh=%ds orientation=%s\n",
				d.Configuration.Brightness, d.Configuration.Volume, d.Configuration.RefreshRate, d.Configuration.Orientation)
			fmt.Fprintf(tw, "LOOP\t%s\n", cliutil.OrDash(d.CurrentLoop))
			fmt.Fprintf(tw, "PLAYING\t%s\n", cliutil.OrDash(d.CurrentAd))
			fmt.Fprintf(tw, "VERSION\t%d\n", d.Version)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func newDisplaysSummaryCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count displays by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			s, err := c.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("error reading summary: %w", err)
			}

			if output == "json" {
				return cliutil.PrintJSON(cmd.OutOrStdout(), s)
			}
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()
			fmt.Fprintln(tw, "TOTAL\tONLINE\tOFFLINE\tINACTIVE\tPENDING REQUESTS")
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", s.Total, s.Online, s.Offline, s.Inactive, s.PendingRequests)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func newDisplaysCreateCmd(a *app) *cobra.Command {
	var (
		id         string
		location   string
		password   string
		resolution string
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a display already assigned to you",
		Long: `Create a display without going through approval. The connection token is
printed once; give it to the device, or set --password so the device can
recover it with its id.`,
		Example: `  adsignctl displays create "Lobby" --id=lobby-1 --location="Main entrance" --resolution=1920x1080`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := parseResolution(resolution)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			resp, err := c.CreateDisplay(cmd.Context(), v1alpha1.DisplayCreateRequest{
				DisplayName: args[0],
				Location:    location,
				DisplayID:   id,
				Password:    password,
				Resolution:  res,
			})
			if err != nil {
				return fmt.Errorf("error creating display: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Display %q created\n", resp.Display.DisplayID)
			fmt.Fprintf(cmd.OutOrStdout(), "Connection token: %s\n", resp.ConnectionToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Display id (generated when empty)")
	cmd.Flags().StringVar(&location, "location", "", "Where the display is installed")
	cmd.Flags().StringVar(&password, "password", "", "Password for recovering the connection token")
	cmd.Flags().StringVar(&resolution, "resolution", "1920x1080", "Screen resolution WIDTHxHEIGHT")
	return cmd
}

func newDisplaysStatusCmd(a *app, use string, status v1alpha1.DisplayStatus, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " DISPLAY_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.SetDisplayStatus(cmd.Context(), args[0], status)
			if err != nil {
				return fmt.Errorf("error updating display: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Display %q is %s\n", d.DisplayID, d.Status)
			return nil
		},
	}
}

func newDisplaysAssignLoopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-loop DISPLAY_ID LOOP_ID",
		Short: "Make a loop the display's current loop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.AssignLoop(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("error assigning loop: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Display %q now plays loop %s\n", d.DisplayID, d.CurrentLoop)
			return nil
		},
	}
}

func newDisplaysDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete DISPLAY_ID",
		Short: "Delete a display",
		Long: `Delete a display. Its device loses access immediately and has to register
again to come back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteDisplay(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("error deleting display: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Display %q deleted\n", args[0])
			return nil
		},
	}
}

// parseResolution reads WIDTHxHEIGHT
func parseResolution(s string) (v1alpha1.Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return v1alpha1.Resolution{}, fmt.Errorf("invalid resolution %q - use WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return v1alpha1.Resolution{}, fmt.Errorf("invalid resolution width %q", w)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return v1alpha1.Resolution{}, fmt.Errorf("invalid resolution height %q", h)
	}
	return v1alpha1.Resolution{Width: width, Height: height}, nil
}
