// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader reads a YAML config file and applies defaults for any unset field.
type Loader struct{}

// NewLoader creates a config Loader.
func NewLoader() *Loader { return &Loader{} }

// Load reads and parses the configuration at path, applying defaults.
func (l *Loader) Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns ~/.<app>/config.yaml for the given app name.
func DefaultPath(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, "."+appName, "config.yaml"), nil
}
