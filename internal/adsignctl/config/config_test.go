package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Contexts)
	assert.Empty(t, cfg.CurrentContext)

	_, err = cfg.GetCurrentContext()
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.AddContext("Prod.EU", &Context{Server: "https://signs.example.com", Token: "tok-1", InsecureSkipVerify: true})
	cfg.AddContext("dev", &Context{Server: "http://localhost:8080"})
	require.NoError(t, cfg.SetCurrentContext("prod.eu"))
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod.eu"}, loaded.Names())

	current, err := loaded.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, &Context{
		Name:               "prod.eu",
		Server:             "https://signs.example.com",
		Token:              "tok-1",
		InsecureSkipVerify: true,
	}, current)
}

func TestRemoveContext(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	cfg.AddContext("dev", &Context{Server: "http://localhost:8080"})
	require.NoError(t, cfg.SetCurrentContext("dev"))

	assert.Error(t, cfg.RemoveContext("staging"))
	require.NoError(t, cfg.RemoveContext("DEV"))
	assert.Empty(t, cfg.CurrentContext)
	assert.Error(t, cfg.SetCurrentContext("dev"))
}
