// Package credentials persists the identity a display received at
// registration so a restarted player resumes instead of registering again
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no credentials have been saved
var ErrNotFound = errors.New("no saved credentials")

// Credentials identify a registered display to the server
type Credentials struct {
	Server          string `yaml:"server"`
	DisplayID       string `yaml:"displayId"`
	ConnectionToken string `yaml:"connectionToken"`
	DisplayName     string `yaml:"displayName,omitempty"`
	Location        string `yaml:"location,omitempty"`
}

// Store reads and writes credentials in a single YAML file
type Store struct {
	path string
}

// NewStore creates a store backed by path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns ~/.adsign-player/credentials.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".adsign-player", "credentials.yaml")
	}
	return filepath.Join(home, ".adsign-player", "credentials.yaml")
}

// Path returns the file backing the store
func (s *Store) Path() string {
	return s.path
}

// Load reads saved credentials. It returns ErrNotFound when the file is
// missing or holds no token.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error reading credentials: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("error parsing credentials %s: %w", s.path, err)
	}
	if creds.ConnectionToken == "" || creds.DisplayID == "" {
		return nil, ErrNotFound
	}
	return &creds, nil
}

// Save writes creds, readable only by the current user. The file is
// replaced atomically.
func (s *Store) Save(creds *Credentials) error {
	if creds.ConnectionToken == "" || creds.DisplayID == "" {
		return errors.New("credentials need a display id and a connection token")
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("error encoding credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("error creating credentials directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("error writing credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing credentials: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("error writing credentials: %w", err)
	}
	return nil
}

// Clear forgets saved credentials. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing credentials: %w", err)
	}
	return nil
}
