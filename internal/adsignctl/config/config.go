// Package config manages adsignctl server contexts
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// keyDelimiter keeps dots in context names from being read as nesting
const keyDelimiter = "::"

// Config holds the CLI configuration
type Config struct {
	// CurrentContext is the name of the active context
	CurrentContext string `mapstructure:"current-context"`
	// Contexts holds the available server contexts
	Contexts map[string]*Context `mapstructure:"contexts"`

	path string
}

// Context is one server an admin works with
type Context struct {
	Name   string `mapstructure:"name"`
	Server string `mapstructure:"server"`
	// Token is the admin bearer token
	Token              string `mapstructure:"token"`
	InsecureSkipVerify bool   `mapstructure:"insecure-skip-verify"`
}

// DefaultPath returns ADSIGNCTL_CONFIG or ~/.adsignctl/config.yaml
func DefaultPath() string {
	if p := os.Getenv("ADSIGNCTL_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".adsignctl", "config.yaml")
	}
	return filepath.Join(home, ".adsignctl", "config.yaml")
}

func newViper(path string) *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetConfigPermissions(0600)
	return v
}

// Load reads the configuration at path. A missing file yields an empty
// configuration; it is created on the first Save.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := &Config{Contexts: map[string]*Context{}, path: path}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]*Context{}
	}
	for name, ctx := range cfg.Contexts {
		ctx.Name = name
	}
	return cfg, nil
}

// Path returns the file the configuration is saved to
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration to disk, readable only by the current user
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	contexts := make(map[string]any, len(c.Contexts))
	for name, ctx := range c.Contexts {
		contexts[name] = map[string]any{
			"name":                 name,
			"server":               ctx.Server,
			"token":                ctx.Token,
			"insecure-skip-verify": ctx.InsecureSkipVerify,
		}
	}

	v := newViper(c.path)
	v.Set("current-context", c.CurrentContext)
	v.Set("contexts", contexts)
	if err := v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

// GetCurrentContext returns the active context configuration
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, errors.New("no current context set; run 'adsignctl config set-context'")
	}
	return c.GetContext(c.CurrentContext)
}

// GetContext returns the named context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// AddContext adds or updates a context. Names are case-insensitive.
func (c *Config) AddContext(name string, context *Context) {
	if c.Contexts == nil {
		c.Contexts = make(map[string]*Context)
	}
	name = normalize(name)
	context.Name = name
	c.Contexts[name] = context
}

// SetCurrentContext sets the active context
func (c *Config) SetCurrentContext(name string) error {
	if _, err := c.GetContext(name); err != nil {
		return err
	}
	c.CurrentContext = normalize(name)
	return nil
}

// RemoveContext removes a context, clearing the current context if it was
// the one removed
func (c *Config) RemoveContext(name string) error {
	name = normalize(name)
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return nil
}

// Names returns the context names in order
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
