// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and merges the project configuration: a
// .cgindex.yaml file in the repository root, overridden by environment
// variables at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

const (
	defaultConfigFile = ".cgindex.yaml"
	configVersion      = "1"
)

// Config is the on-disk .cgindex.yaml shape plus anything environment
// variables are allowed to override.
type Config struct {
	Version   string         `yaml:"version"`
	ProjectID string         `yaml:"project_id"`
	Backend   BackendConfig  `yaml:"backend"`
	Indexing  IndexingConfig `yaml:"indexing"`
	LogLevel  string         `yaml:"log_level,omitempty"`
}

// BackendConfig selects and configures the property-graph backend.
type BackendConfig struct {
	Type     string `yaml:"type"`     // mem, sqlite, rocksdb
	URI      string `yaml:"uri"`      // path or connection string
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// IndexingConfig controls what gets walked and how batches are sized.
type IndexingConfig struct {
	BatchTarget int      `yaml:"batch_target"`
	MaxFileSize int64    `yaml:"max_file_size"`
	Exclude     []string `yaml:"exclude"`
}

// Default returns a config with sensible defaults for local, embedded use.
func Default(projectID string) *Config {
	return &Config{
		Version:   configVersion,
		ProjectID: projectID,
		Backend: BackendConfig{
			Type: getEnv("DATABASE_TYPE", "sqlite"),
			URI:  getEnv("CGC_DATABASE_URI", filepath.Join(".cgindex", "graph.db")),
		},
		Indexing: IndexingConfig{
			BatchTarget: 500,
			MaxFileSize: 1048576,
			Exclude: []string{
				".git/**", "node_modules/**", "vendor/**", "dist/**", "build/**",
				"*.o", "*.so", "*.dylib", "*.exe",
			},
		},
		LogLevel: getEnv("CGC_LOG_LEVEL", "INFO"),
	}
}

// Path returns the path to the config file in dir.
func Path(dir string) string {
	return filepath.Join(dir, defaultConfigFile)
}

// Load finds and parses .cgindex.yaml starting at the working directory and
// walking up to the filesystem root, then applies environment overrides. If
// configPath (or else CGC_CONFIG_PATH) is non-empty it is used directly
// instead of searching.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CGC_CONFIG_PATH")
	}
	if configPath == "" {
		var err error
		configPath, err = find()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, cgerrors.NewConfigError(
			"cannot read configuration file",
			fmt.Sprintf("failed to read %s", configPath),
			"check file permissions and ensure the file exists",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cgerrors.NewConfigError(
			"invalid configuration format",
			"YAML parsing failed",
			fmt.Sprintf("edit %s to fix syntax errors", configPath),
			err,
		)
	}
	if cfg.Version != configVersion {
		return nil, cgerrors.NewConfigError(
			"unsupported configuration version",
			fmt.Sprintf("config version %q is not supported (expected %q)", cfg.Version, configVersion),
			"regenerate the configuration file",
			nil,
		)
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// Save writes cfg to configPath as YAML, creating the parent directory if
// needed.
func Save(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return cgerrors.NewInternalError("cannot encode configuration", "YAML marshaling failed", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return cgerrors.New(cgerrors.ConfigError, "cannot create configuration directory",
			fmt.Sprintf("permission denied creating %s", filepath.Dir(configPath)), "", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return cgerrors.New(cgerrors.ConfigError, "cannot write configuration file",
			fmt.Sprintf("permission denied writing to %s", configPath), "", err)
	}
	return nil
}

func find() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", cgerrors.NewInternalError("cannot access working directory", err.Error(), err)
	}
	for {
		candidate := Path(dir)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", cgerrors.NewConfigError(
		"configuration not found",
		"no .cgindex.yaml file found in the current directory or any parent",
		"create a .cgindex.yaml in the repository root",
		nil,
	)
}

// applyEnvOverrides lets DATABASE_TYPE, backend URI/credentials, and
// CGC_LOG_LEVEL take precedence over the file, per the documented
// environment inputs.
func (c *Config) applyEnvOverrides() {
	if t := os.Getenv("DATABASE_TYPE"); t != "" {
		c.Backend.Type = t
	}
	if uri := os.Getenv("CGC_DATABASE_URI"); uri != "" {
		c.Backend.URI = uri
	}
	if user := os.Getenv("CGC_DATABASE_USERNAME"); user != "" {
		c.Backend.Username = user
	}
	if pass := os.Getenv("CGC_DATABASE_PASSWORD"); pass != "" {
		c.Backend.Password = pass
	}
	if lvl := os.Getenv("CGC_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
