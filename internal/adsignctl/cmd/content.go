package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/cliutil"
)

// newLoopsCmd manages advertisement loops
func newLoopsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "loops",
		Aliases: []string{"loop"},
		Short:   "Manage advertisement loops",
		Long: `A loop is the ordered list of advertisements a display plays. The same ad may
appear more than once. Only active ads play; the rest are skipped.`,
	}

	cmd.AddCommand(
		newLoopsCreateCmd(a),
		newLoopsGetCmd(a),
		newLoopsListCmd(a),
		newLoopsSetAdsCmd(a),
		newLoopsDeleteCmd(a),
	)
	return cmd
}

func newLoopsCreateCmd(a *app) *cobra.Command {
	var (
		displayID string
		rotation  string
		ads       []string
		assign    bool
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a loop for a display",
		Example: `  adsignctl loops create morning --display=lobby-1 --ad=<id> --ad=<id> --rotation=random --assign`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adIDs, err := parseAdIDs(ads)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			l, err := c.CreateLoop(cmd.Context(), v1alpha1.LoopCreateRequest{
				DisplayID:      displayID,
				Name:           args[0],
				RotationType:   v1alpha1.RotationType(rotation),
				Advertisements: adIDs,
				Assign:         assign,
			})
			if err != nil {
				return fmt.Errorf("error creating loop: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loop %s created (%d ads, %ds)\n", l.ID, len(l.Items), l.TotalDuration)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayID, "display", "", "Display the loop is for (required)")
	cmd.Flags().StringVar(&rotation, "rotation", string(v1alpha1.RotationSequential), "Rotation (sequential, random, scheduled)")
	cmd.Flags().StringArrayVar(&ads, "ad", nil, "Advertisement id, in play order; repeatable")
	cmd.Flags().BoolVar(&assign, "assign", false, "Make the new loop the display's current loop")
	_ = cmd.MarkFlagRequired("display")
	return cmd
}

func newLoopsGetCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get LOOP_ID",
		Short: "Show a loop and its advertisements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			l, err := c.GetLoop(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error getting loop: %w", err)
			}

			if output == "json" {
				return cliutil.PrintJSON(cmd.OutOrStdout(), l)
			}
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()
			fmt.Fprintf(tw, "ID\t%s\n", l.ID)
			fmt.Fprintf(tw, "NAME\t%s\n", l.Name)
			fmt.Fprintf(tw, "DISPLAY\t%s\n", l.DisplayID)
			fmt.Fprintf(tw, "ROTATION\t%s\n", l.RotationType)
			fmt.Fprintf(tw, "DURATION\t%ds\n", l.TotalDuration)
			fmt.Fprintf(tw, "VERSION\t%d\n", l.Version)
			for _, item := range l.Items {
				fmt.Fprintf(tw, "  %d\t%s\n", item.LoopOrder, item.AdID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func newLoopsListCmd(a *app) *cobra.Command {
	var (
		displayID string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the loops of a display",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			loops, err := c.ListLoops(cmd.Context(), displayID)
			if err != nil {
				return fmt.Errorf("error listing loops: %w", err)
			}

			if output == "json" {
				return cliutil.PrintJSON(cmd.OutOrStdout(), loops)
			}
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()
			fmt.Fprintln(tw, "ID\tNAME\tROTATION\tADS\tDURATION")
			for _, l := range loops {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%ds\n", l.ID, l.Name, l.RotationType, len(l.Items), l.TotalDuration)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&displayID, "display", "", "Display whose loops to list (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	_ = cmd.MarkFlagRequired("display")
	return cmd
}

func newLoopsSetAdsCmd(a *app) *cobra.Command {
	var (
		ads      []string
		rotation string
		version  int
	)

	cmd := &cobra.Command{
		Use:   "set-ads LOOP_ID",
		Short: "Replace a loop's advertisements or rotation",
		Long: `Replace the advertisements of a loop, in play order, and/or change its
rotation. Replacing the ads recomputes the loop's total duration. Pass
--version to fail instead of overwriting a concurrent change.`,
		Example: `  adsignctl loops set-ads <loop-id> --ad=<id> --ad=<id> --ad=<id>
  adsignctl loops set-ads <loop-id> --rotation=random`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := v1alpha1.LoopUpdateRequest{Version: version}
			if cmd.Flags().Changed("ad") {
				adIDs, err := parseAdIDs(ads)
				if err != nil {
					return err
				}
				req.Advertisements = adIDs
			}
			if rotation != "" {
				rt := v1alpha1.RotationType(rotation)
				req.RotationType = &rt
			}
			if req.Advertisements == nil && req.RotationType == nil {
				return fmt.Errorf("nothing to change; give --ad or --rotation")
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			l, err := c.UpdateLoop(cmd.Context(), args[0], req)
			if err != nil {
				return fmt.Errorf("error updating loop: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loop %s updated (%d ads, %ds, %s)\n", l.ID, len(l.Items), l.TotalDuration, l.RotationType)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&ads, "ad", nil, "Advertisement id, in play order; repeatable")
	cmd.Flags().StringVar(&rotation, "rotation", "", "New rotation (sequential, random, scheduled)")
	cmd.Flags().IntVar(&version, "version", 0, "Expected loop version")
	return cmd
}

func newLoopsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete LOOP_ID",
		Short: "Delete a loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteLoop(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("error deleting loop: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loop %s deleted\n", args[0])
			return nil
		},
	}
}

// newAdsCmd manages advertisements
func newAdsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ads",
		Aliases: []string{"ad", "advertisements"},
		Short:   "Manage advertisements",
	}

	cmd.AddCommand(
		newAdsCreateCmd(a),
		newAdsListCmd(a),
		newAdsSetStatusCmd(a),
	)
	return cmd
}

func newAdsCreateCmd(a *app) *cobra.Command {
	var (
		mediaURL  string
		mediaType string
		duration  int
		status    string
	)

	cmd := &cobra.Command{
		Use:     "create TITLE",
		Short:   "Create an advertisement",
		Example: `  adsignctl ads create "Spring sale" --url=https://cdn.example.com/spring.mp4 --type=video --duration=15 --status=active`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ad, err := c.CreateAdvertisement(cmd.Context(), v1alpha1.AdvertisementCreateRequest{
				Title:     args[0],
				MediaURL:  mediaURL,
				MediaType: v1alpha1.MediaType(mediaType),
				Duration:  duration,
				Status:    v1alpha1.AdvertisementStatus(status),
			})
			if err != nil {
				return fmt.Errorf("error creating advertisement: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Advertisement %s created (%s)\n", ad.ID, ad.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaURL, "url", "", "Media URL (required)")
	cmd.Flags().StringVar(&mediaType, "type", string(v1alpha1.MediaImage), "Media type (image, video)")
	cmd.Flags().IntVar(&duration, "duration", 10, "Seconds on screen, 1-300")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (default draft)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newAdsListCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List advertisements",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ads, err := c.ListAdvertisements(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing advertisements: %w", err)
			}

			if output == "json" {
				return cliutil.PrintJSON(cmd.OutOrStdout(), ads)
			}
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()
			fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tDURATION\tSTATUS")
			for _, ad := range ads {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%ds\t%s\n", ad.ID, ad.Title, ad.MediaType, ad.Duration, ad.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func newAdsSetStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "set-status AD_ID STATUS",
		Short:   "Change whether an advertisement plays",
		Example: `  adsignctl ads set-status <id> active`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ad, err := c.SetAdvertisementStatus(cmd.Context(), args[0], v1alpha1.AdvertisementStatus(strings.ToLower(args[1])))
			if err != nil {
				return fmt.Errorf("error updating advertisement: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Advertisement %s is %s\n", ad.ID, ad.Status)
			return nil
		},
	}
}

// parseAdIDs validates ids locally so typos fail before any request
func parseAdIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("invalid advertisement id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
