// Package config loads the player's settings from an optional file,
// ADSIGN_PLAYER_* environment variables and command line flags
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wrale/adsign/internal/player/credentials"
)

// Config holds the player configuration
type Config struct {
	// Server is the API server URL
	Server string `mapstructure:"server"`
	// CredentialsPath is where the display's token is kept between runs
	CredentialsPath string `mapstructure:"credentials"`

	// Registration details sent when the display has no saved credentials
	DisplayName string `mapstructure:"name"`
	Location    string `mapstructure:"location"`
	DisplayID   string `mapstructure:"id"`
	Password    string `mapstructure:"password"`
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat-interval"`
	PollInterval      time.Duration `mapstructure:"poll-interval"`
	PlaylistRefresh   time.Duration `mapstructure:"playlist-refresh"`
	RequestTimeout    time.Duration `mapstructure:"request-timeout"`

	InsecureSkipVerify bool   `mapstructure:"insecure-skip-verify"`
	LogLevel           string `mapstructure:"log-level"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("credentials", credentials.DefaultPath())
	v.SetDefault("name", "")
	v.SetDefault("location", "")
	v.SetDefault("id", "")
	v.SetDefault("password", "")
	v.SetDefault("width", 1920)
	v.SetDefault("height", 1080)
	v.SetDefault("heartbeat-interval", 10*time.Second)
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("playlist-refresh", time.Minute)
	v.SetDefault("request-timeout", 10*time.Second)
	v.SetDefault("insecure-skip-verify", false)
	v.SetDefault("log-level", "info")
}

// BindFlags declares the player's persistent flags and binds them to v
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.String("server", "", "API server URL")
	flags.String("credentials", "", "credentials file (default $HOME/.adsign-player/credentials.yaml)")
	flags.String("name", "", "display name used at registration")
	flags.String("location", "", "display location used at registration")
	flags.String("id", "", "requested display id (generated by the server when empty)")
	flags.String("password", "", "optional password for recovering the connection token")
	flags.Duration("heartbeat-interval", 0, "interval between heartbeats")
	flags.Duration("poll-interval", 0, "interval between approval polls")
	flags.Duration("playlist-refresh", 0, "interval between playlist refreshes")
	flags.Bool("insecure-skip-verify", false, "skip TLS certificate verification")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		errs = append(errs, v.BindPFlag(f.Name, f))
	})
	return errors.Join(errs...)
}

// Load reads configFile when given, overlays the environment and returns the
// validated configuration
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("ADSIGN_PLAYER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", c.Server)
	}
	if c.CredentialsPath == "" {
		return errors.New("credentials path is required")
	}
	if c.HeartbeatInterval < time.Second {
		return fmt.Errorf("heartbeat interval must be at least 1s, got %s", c.HeartbeatInterval)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1s, got %s", c.PollInterval)
	}
	if c.PlaylistRefresh < time.Second {
		return fmt.Errorf("playlist refresh must be at least 1s, got %s", c.PlaylistRefresh)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	return nil
}
