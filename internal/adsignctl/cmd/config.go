package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrale/adsign/internal/adsignctl/config"
	"github.com/wrale/adsign/internal/cliutil"
)

// newConfigCmd manages server contexts
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `Manage adsignctl contexts. Each context names a server and the admin token
used with it, so switching between environments is a single command.`,
	}

	cmd.AddCommand(
		newConfigGetContextCmd(a),
		newConfigSetContextCmd(a),
		newConfigDeleteContextCmd(a),
		newConfigUseContextCmd(a),
	)
	return cmd
}

func newConfigGetContextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get-context [NAME]",
		Short: "Display one or many contexts",
		Example: `  # List all contexts
  adsignctl config get-context

  # Show one context
  adsignctl config get-context production`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := cliutil.NewTabWriter(cmd.OutOrStdout())
			defer tw.Flush()

			if len(args) == 1 {
				ctx, err := a.cfg.GetContext(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "NAME\t%s\n", ctx.Name)
				fmt.Fprintf(tw, "SERVER\t%s\n", ctx.Server)
				fmt.Fprintf(tw, "TOKEN\t%s\n", maskToken(ctx.Token))
				fmt.Fprintf(tw, "INSECURE\t%v\n", ctx.InsecureSkipVerify)
				return nil
			}

			fmt.Fprintln(tw, "CURRENT\tNAME\tSERVER")
			for _, name := range a.cfg.Names() {
				current := ""
				if name == a.cfg.CurrentContext {
					current = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", current, name, a.cfg.Contexts[name].Server)
			}
			return nil
		},
	}
}

func newConfigSetContextCmd(a *app) *cobra.Command {
	var (
		server   string
		token    string
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "set-context NAME",
		Short: "Create or update a context",
		Long: `Create a context or update an existing one. The first context created
becomes the current context. Flags not given keep their previous value.`,
		Example: `  # Local development server
  adsignctl config set-context dev --server=http://localhost:8080 --token=$(adsignd -issue-admin-token=me)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := &config.Context{}
			if existing, err := a.cfg.GetContext(args[0]); err == nil {
				ctx = existing
			}
			if cmd.Flags().Changed("server") {
				ctx.Server = server
			}
			if cmd.Flags().Changed("token") {
				ctx.Token = token
			}
			if cmd.Flags().Changed("insecure-skip-tls") {
				ctx.InsecureSkipVerify = insecure
			}
			if ctx.Server == "" {
				return fmt.Errorf("server URL is required")
			}

			a.cfg.AddContext(args[0], ctx)
			if a.cfg.CurrentContext == "" {
				a.cfg.CurrentContext = ctx.Name
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Context %q updated\n", ctx.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Server URL")
	cmd.Flags().StringVar(&token, "token", "", "Admin bearer token")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-tls", false, "Skip TLS certificate verification")
	return cmd
}

func newConfigDeleteContextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RemoveContext(args[0]); err != nil {
				return err
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted\n", args[0])
			return nil
		},
	}
}

func newConfigUseContextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use-context NAME",
		Short: "Switch to a different context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.SetCurrentContext(args[0]); err != nil {
				return err
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q\n", a.cfg.CurrentContext)
			return nil
		},
	}
}

// maskToken shows only enough of a token to tell tokens apart
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 10 {
		return "***"
	}
	return token[:10] + "..."
}
