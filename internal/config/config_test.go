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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

func TestDefault(t *testing.T) {
	cfg := Default("myproject")
	if cfg.ProjectID != "myproject" {
		t.Fatalf("ProjectID = %q", cfg.ProjectID)
	}
	if cfg.Backend.Type == "" || cfg.Backend.URI == "" {
		t.Fatalf("backend defaults missing: %+v", cfg.Backend)
	}
	if cfg.LogLevel != "INFO" && os.Getenv("CGC_LOG_LEVEL") == "" {
		t.Fatalf("LogLevel = %q, want INFO", cfg.LogLevel)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir)

	cfg := Default("roundtrip")
	cfg.Indexing.Exclude = []string{"generated/**"}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ProjectID != "roundtrip" {
		t.Fatalf("ProjectID = %q", loaded.ProjectID)
	}
	if len(loaded.Indexing.Exclude) != 1 || loaded.Indexing.Exclude[0] != "generated/**" {
		t.Fatalf("Exclude = %v", loaded.Indexing.Exclude)
	}
}

func TestLoad_RejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cgindex.yaml")
	if err := os.WriteFile(path, []byte("version: \"99\"\nproject_id: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load accepted an unsupported version")
	}
	ue, ok := err.(*cgerrors.UserError)
	if !ok || ue.Category != cgerrors.ConfigError {
		t.Fatalf("got %T %v, want a ConfigError", err, err)
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cgindex.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cgindex.yaml")
	if err := Save(Default("env"), path); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATABASE_TYPE", "rocksdb")
	t.Setenv("CGC_DATABASE_URI", "/tmp/override.db")
	t.Setenv("CGC_LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Type != "rocksdb" {
		t.Errorf("Backend.Type = %q, want rocksdb", cfg.Backend.Type)
	}
	if cfg.Backend.URI != "/tmp/override.db" {
		t.Errorf("Backend.URI = %q", cfg.Backend.URI)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
}
