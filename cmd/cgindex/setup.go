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

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cgindex/cgindex/internal/cgerrors"
	"github.com/cgindex/cgindex/internal/config"
	"github.com/cgindex/cgindex/internal/grammar"
	"github.com/cgindex/cgindex/internal/graphstore"
	"github.com/cgindex/cgindex/internal/indexer"
)

// session bundles everything a subcommand needs: the loaded config, an open
// Store, the shared Grammar Registry, and a logger honoring CGC_LOG_LEVEL.
type session struct {
	cfg      *config.Config
	repoPath string
	store    *graphstore.Store
	grammars *grammar.Registry
	indexer  *indexer.Indexer
	logger   *slog.Logger
}

// openSession prepares a subcommand's working state. repoArg, when
// non-empty, overrides the repository root (the CLI's `<path>` operand);
// otherwise the current directory is the root.
func openSession(globals GlobalFlags, repoArg string) *session {
	cwd, err := os.Getwd()
	if err != nil {
		cgerrors.Fatal(cgerrors.NewInternalError("cannot access current directory", err.Error(), err), globals.JSON)
	}
	if repoArg != "" {
		if !filepath.IsAbs(repoArg) {
			repoArg = filepath.Join(cwd, repoArg)
		}
		info, statErr := os.Stat(repoArg)
		if statErr != nil || !info.IsDir() {
			cgerrors.Fatal(cgerrors.NewConfigError(
				"repository path is not a directory",
				repoArg,
				"pass an existing directory to index",
				statErr,
			), globals.JSON)
		}
		cwd = repoArg
	}

	cfg, err := config.Load(globals.ConfigPath)
	if err != nil {
		if _, ok := err.(*cgerrors.UserError); ok {
			cfg = config.Default(filepath.Base(cwd))
		} else {
			cgerrors.Fatal(err, globals.JSON)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	dbPath := cfg.Backend.URI
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(cwd, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		cgerrors.Fatal(cgerrors.New(cgerrors.ConfigError, "cannot create database directory", err.Error(), "", err), globals.JSON)
	}

	store, err := graphstore.Open(cfg.Backend.Type, dbPath, cwd)
	if err != nil {
		cgerrors.Fatal(err, globals.JSON)
	}
	if err := store.CreateSchema(); err != nil {
		cgerrors.Fatal(err, globals.JSON)
	}

	grammars := grammar.New()
	ix := indexer.New(store, grammars, logger, cfg.Indexing.Exclude, cfg.Indexing.MaxFileSize)

	return &session{cfg: cfg, repoPath: cwd, store: store, grammars: grammars, indexer: ix, logger: logger}
}

func (s *session) close() {
	s.store.Close()
}

func logLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
