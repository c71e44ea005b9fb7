package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wrale/adsign/internal/cliutil"
	"github.com/wrale/adsign/internal/player/credentials"
	"github.com/wrale/adsign/internal/player/runner"
)

func newRegisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register this display without starting playback",
		Long: `Register this display with the server and save its connection token. When
credentials are already saved nothing is sent. With --id and --password the
token of an existing display is recovered instead.`,
		Example: `  # Register a display for the lobby
  adsign-player register --server=https://signs.example.com --name=Lobby --location="Main entrance"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			creds, err := a.runner(c, runner.NewTextScreen(cmd.OutOrStdout())).Identify(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Display %q registered with %s\n", creds.DisplayID, creds.Server)
			fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to %s\n", a.cfg.CredentialsPath)
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Register if needed, wait for approval and play content",
		Long: `Run the display. A display without saved credentials registers first and
shows a waiting screen until an admin approves it. Type q and Enter to stop
and forget the credentials; interrupting with Ctrl-C keeps them so the next
run resumes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := a.runner(c, runner.NewTextScreen(cmd.OutOrStdout()))
			err = r.Run(ctx, runner.WatchQuit(cmd.InOrStdin()))

			var rejected *runner.RejectedError
			switch {
			case err == nil, errors.Is(err, ctx.Err()):
				a.logger.Info().Msg("player stopped; credentials kept")
				return nil
			case errors.Is(err, runner.ErrQuit):
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped. Credentials cleared; the next run registers again.")
				return nil
			case errors.As(err, &rejected), errors.Is(err, runner.ErrDeleted):
				return fmt.Errorf("%w; run 'adsign-player forget' to register again", err)
			default:
				return err
			}
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the registration status of this display",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.store().Load()
			if errors.Is(err, credentials.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not registered")
				return nil
			}
			if err != nil {
				return err
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			status, err := c.PollStatus(cmd.Context(), creds.ConnectionToken)
			if err != nil {
				return fmt.Errorf("error reading status of display %s: %w", creds.DisplayID, err)
			}

			if output == "json" {
				return cliutil.PrintJSON(cmd.OutOrStdout(), status)
			}
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()
			fmt.Fprintf(tw, "DISPLAY\t%s\n", status.DisplayID)
			fmt.Fprintf(tw, "SERVER\t%s\n", creds.Server)
			fmt.Fprintf(tw, "REQUEST\t%s\n", status.ConnectionRequestStatus)
			if status.RejectionReason != "" {
				fmt.Fprintf(tw, "REASON\t%s\n", status.RejectionReason)
			}
			fmt.Fprintf(tw, "STATUS\t%s\n", status.Status)
			fmt.Fprintf(tw, "ADMIN\t%s\n", status.AssignedAdmin)
			fmt.Fprintf(tw, "LOOP\t%s\n", status.CurrentLoop)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func newForgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Delete the saved credentials of this display",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store().Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credentials removed from %s\n", a.cfg.CredentialsPath)
			return nil
		},
	}
}
