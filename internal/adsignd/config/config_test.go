package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ADSIGN_AUTH_TOKEN_KEY", testKey)
	t.Setenv("ADSIGN_SERVER_PORT", "9090")
	t.Setenv("ADSIGN_STORAGE_DRIVER", "memory")
	t.Setenv("ADSIGN_REJECTED_RETENTION", "72h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 72*time.Hour, cfg.Liveness.RejectedRetention)
	assert.Equal(t, 5, cfg.Registration.MaxAttempts)
}

func TestLoadRequiresSigningKey(t *testing.T) {
	t.Setenv("ADSIGN_AUTH_TOKEN_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults with key",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "half tls",
			mutate:  func(c *Config) { c.Server.TLSCert = "cert.pem" },
			wantErr: "TLS",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "sqlite" },
			wantErr: "unknown storage driver",
		},
		{
			name: "memory skips database checks",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverMemory
				c.Database.Port = 0
			},
		},
		{
			name:    "short key",
			mutate:  func(c *Config) { c.Auth.TokenSigningKey = "short" },
			wantErr: "at least 32 bytes",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Registration.MaxAttempts = 0 },
			wantErr: "max attempts",
		},
		{
			name: "sweeper interval too short",
			mutate: func(c *Config) {
				c.Liveness.RejectedRetention = time.Hour
				c.Liveness.SweepInterval = time.Second
			},
			wantErr: "sweep interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.TokenSigningKey = testKey
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(dir, "adsignd.yaml")
	content := `
server:
  port: 8181
storage:
  driver: memory
auth:
  tokenSigningKey: ` + testKey + `
liveness:
  rejectedRetention: 24h
  sweepInterval: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	orig := DefaultConfigDirs
	DefaultConfigDirs = []string{dir}
	t.Cleanup(func() { DefaultConfigDirs = orig })

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Liveness.RejectedRetention)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "defaults survive partial files")
}

func TestLoadFileRejectsPaths(t *testing.T) {
	_, err := LoadFile("/tmp/adsignd.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extension")

	_, err = LoadFile("/var/tmp/elsewhere/adsignd.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed directory")
}
