package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// DefaultConfigDirs lists the allowed configuration directories in order of preference
	DefaultConfigDirs = []string{
		"/etc/adsign",
		"/usr/local/etc/adsign",
	}

	allowedExtensions = []string{".yaml", ".yml"}
)

// resolveConfigPath follows symlinks and accepts only YAML files inside
// one of DefaultConfigDirs, or under the working directory when
// ADSIGN_DEV_MODE=1
func resolveConfigPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid config path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		resolved = filepath.Clean(abs)
	case err != nil:
		return "", fmt.Errorf("error resolving config path: %w", err)
	}

	if !slices.Contains(allowedExtensions, strings.ToLower(filepath.Ext(resolved))) {
		return "", fmt.Errorf("config file %s has an unsupported extension, want .yaml or .yml", resolved)
	}

	dir := filepath.Dir(resolved)
	roots := DefaultConfigDirs
	if os.Getenv("ADSIGN_DEV_MODE") == "1" {
		if wd, err := os.Getwd(); err == nil {
			roots = append(slices.Clone(roots), wd)
		}
	}
	within := func(root string) bool {
		rel, err := filepath.Rel(root, dir)
		return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}
	if !slices.ContainsFunc(roots, within) {
		return "", fmt.Errorf("config directory %s is not an allowed directory (%s)", dir, strings.Join(roots, ", "))
	}
	return resolved, nil
}

// readRegularFile reads a file that passed resolveConfigPath
func readRegularFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config path %s is not a regular file", path)
	}
	// #nosec G304 -- path was checked by resolveConfigPath
	return os.ReadFile(path)
}

// LoadFile loads configuration from a YAML file layered over Default,
// then overlays the environment
func LoadFile(path string) (*Config, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	data, err := readRegularFile(resolved)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", resolved, err)
	}

	cfg.overlayEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
