package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Server)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Minute, cfg.PlaylistRefresh)
	assert.Equal(t, 1920, cfg.Width)
	assert.NotEmpty(t, cfg.CredentialsPath)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: https://signs.example.com
name: Lobby
location: Main entrance
heartbeat-interval: 20s
`), 0600))

	t.Setenv("ADSIGN_PLAYER_LOCATION", "Side entrance")

	v := viper.New()
	flags := pflag.NewFlagSet("player", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, flags.Parse([]string{"--poll-interval=2s"}))

	cfg, err := Load(v, path)
	require.NoError(t, err)

	assert.Equal(t, "https://signs.example.com", cfg.Server)
	assert.Equal(t, "Lobby", cfg.DisplayName)
	assert.Equal(t, "Side entrance", cfg.Location)
	assert.Equal(t, 20*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Minute, cfg.PlaylistRefresh)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"bad scheme", "server", "ftp://signs"},
		{"no host", "server", "http://"},
		{"fast heartbeat", "heartbeat-interval", 100 * time.Millisecond},
		{"fast poll", "poll-interval", time.Duration(0)},
		{"bad width", "width", 0},
		{"no credentials path", "credentials", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := Load(v, "")
			assert.Error(t, err)
		})
	}
}
