// Package config loads the server's yaml configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Addr is the http listen address.
	Addr string `yaml:"addr"`

	// DataDir holds the sqlite ledger and the operation journal.
	DataDir string `yaml:"data_dir"`

	// RegistryRef is the hex 32-byte principal reference the registry
	// acts as when collecting tax. Taxpayers approve this identity.
	RegistryRef string `yaml:"registry_ref"`

	DisableDB      bool `yaml:"disable_db"`
	DisableJournal bool `yaml:"disable_journal"`
}

func defaults() Config {
	return Config{
		Addr:    ":8080",
		DataDir: "./data",
	}
}

// Load reads path, or returns defaults when path is empty.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.normalize()
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("paulette.yaml: %w", err)
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	c.RegistryRef = strings.TrimSpace(strings.ToLower(c.RegistryRef))
}

func (c *Config) Validate() error {
	if c.RegistryRef != "" && len(c.RegistryRef) != 64 {
		return fmt.Errorf("registry_ref must be 64 hex chars, got %d", len(c.RegistryRef))
	}
	for _, r := range c.RegistryRef {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return fmt.Errorf("registry_ref is not hex")
		}
	}
	return nil
}
