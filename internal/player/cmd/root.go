// Package cmd implements the adsign-player commands
package cmd

import (
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/client"
	"github.com/wrale/adsign/internal/player/config"
	"github.com/wrale/adsign/internal/player/credentials"
	"github.com/wrale/adsign/internal/player/runner"
)

var (
	// These variables are set during build
	version = "dev"
	commit  = "none"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
}

// NewRootCmd builds the adsign-player command tree
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "adsign-player",
		Short: "Run an adsign display",
		Long: `adsign-player turns this machine into an adsign display. It registers with
the server, waits for an admin to approve it and then plays the advertisement
loop assigned to it, reporting a heartbeat while it runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "player config file")
	if err := config.BindFlags(a.v, cmd.PersistentFlags()); err != nil {
		panic(err)
	}

	cmd.AddCommand(
		newRegisterCmd(a),
		newRunCmd(a),
		newStatusCmd(a),
		newForgetCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

func (a *app) store() *credentials.Store {
	return credentials.NewStore(a.cfg.CredentialsPath)
}

func (a *app) tlsConfig() *tls.Config {
	if !a.cfg.InsecureSkipVerify {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: true}
}

func (a *app) client() (*client.Client, error) {
	opts := []client.Option{
		client.WithTimeout(a.cfg.RequestTimeout),
		client.WithLogger(a.logger),
	}
	if tlsConfig := a.tlsConfig(); tlsConfig != nil {
		opts = append(opts, client.WithTLSConfig(tlsConfig))
	}
	return client.New(a.cfg.Server, opts...)
}

func (a *app) dialer() *websocket.Dialer {
	tlsConfig := a.tlsConfig()
	if tlsConfig == nil {
		return nil
	}
	d := *websocket.DefaultDialer
	d.TLSClientConfig = tlsConfig
	return &d
}

func (a *app) runner(c *client.Client, screen runner.Screen) *runner.Runner {
	hostname, _ := os.Hostname()
	return runner.New(c, a.store(), runner.WebsocketSubscriber(c, a.dialer(), a.logger), screen, runner.Options{
		Server:      a.cfg.Server,
		DisplayName: a.cfg.DisplayName,
		Location:    a.cfg.Location,
		DisplayID:   a.cfg.DisplayID,
		Password:    a.cfg.Password,
		Resolution:  v1alpha1.Resolution{Width: a.cfg.Width, Height: a.cfg.Height},
		DeviceInfo: map[string]string{
			"hostname": hostname,
			"os":       runtime.GOOS,
			"arch":     runtime.GOARCH,
			"player":   version,
		},
		HeartbeatInterval: a.cfg.HeartbeatInterval,
		PollInterval:      a.cfg.PollInterval,
		PlaylistRefresh:   a.cfg.PlaylistRefresh,
		RequestTimeout:    a.cfg.RequestTimeout,
	}, a.logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "adsign-player version %s (commit %s)\n", version, commit)
		},
	}
}
