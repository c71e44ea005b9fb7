// Package cmd implements the adsignctl commands
package cmd

import (
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wrale/adsign/internal/adsignctl/config"
	"github.com/wrale/adsign/internal/client"
)

var (
	// These variables are set during build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds global flags and the loaded configuration
type app struct {
	cfgFile     string
	contextName string
	server      string
	token       string
	insecure    bool
	verbose     bool

	cfg    *config.Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewRootCmd builds the adsignctl command tree
func NewRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	cmd := &cobra.Command{
		Use:   "adsignctl",
		Short: "adsign admin tool",
		Long: `adsignctl manages an adsign deployment: it approves or rejects displays
waiting for approval, manages displays and their status, and builds the
advertisement loops each display plays.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.adsignctl/config.yaml)")
	flags.StringVar(&a.contextName, "context", "", "context to use instead of the current one")
	flags.StringVar(&a.server, "server", "", "API server URL (overrides the context)")
	flags.StringVar(&a.token, "token", "", "admin bearer token (overrides the context)")
	flags.BoolVar(&a.insecure, "insecure-skip-verify", false, "skip TLS certificate verification")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log API calls")

	cmd.AddCommand(
		newConfigCmd(a),
		newRequestsCmd(a),
		newDisplaysCmd(a),
		newLoopsCmd(a),
		newAdsCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// client builds an API client from the selected context, flags and
// ADSIGNCTL_SERVER / ADSIGNCTL_TOKEN
func (a *app) client() (*client.Client, error) {
	var ctx config.Context
	switch {
	case a.contextName != "":
		c, err := a.cfg.GetContext(a.contextName)
		if err != nil {
			return nil, err
		}
		ctx = *c
	case a.cfg.CurrentContext != "":
		c, err := a.cfg.GetCurrentContext()
		if err != nil {
			return nil, err
		}
		ctx = *c
	}

	if s := os.Getenv("ADSIGNCTL_SERVER"); s != "" {
		ctx.Server = s
	}
	if t := os.Getenv("ADSIGNCTL_TOKEN"); t != "" {
		ctx.Token = t
	}
	if a.server != "" {
		ctx.Server = a.server
	}
	if a.token != "" {
		ctx.Token = a.token
	}
	if a.insecure {
		ctx.InsecureSkipVerify = true
	}

	if ctx.Server == "" {
		return nil, fmt.Errorf("no API server configured; use --server or 'adsignctl config set-context'")
	}
	if ctx.Token == "" {
		return nil, fmt.Errorf("no admin token configured; use --token or 'adsignctl config set-context --token'")
	}

	opts := []client.Option{
		client.WithToken(ctx.Token),
		client.WithLogger(a.logger),
	}
	if ctx.InsecureSkipVerify {
		opts = append(opts, client.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}
	c, err := client.New(ctx.Server, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return c, nil
}

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "adsignctl version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}
