package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Save writes the config to the user's config directory.
func (c *Config) Save() error {
	return c.SaveTo(filepath.Join(ConfigDir(), "config.yaml"))
}

// SaveTo writes the config to a specific path, creating parent directories as needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SaveFor writes the config to the -config file of flags, or to the user's
// config directory when none was given. It returns the written path.
func (c *Config) SaveFor(flags *Flags) (string, error) {
	if path := flags.ConfigPath(); path != "" {
		return path, c.SaveTo(path)
	}
	return filepath.Join(ConfigDir(), "config.yaml"), c.Save()
}
