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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

// runIndex executes a full-index run. reindex is cosmetic here (both paths
// call Indexer.FullIndex, which ensures the schema exists and re-writes every
// file it finds) but is kept as
// a distinct command since re-indexing an already-populated repository is a
// meaningfully different operator intent from an initial index.
func runIndex(args []string, globals GlobalFlags, reindex bool) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	fs.Parse(args) //nolint:errcheck

	s := openSession(globals, fs.Arg(0))
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() { <-sigCh; s.logger.Info("index.cancelled_by_signal"); cancel() }()

	var bar *progressbar.ProgressBar
	var barPhase string
	progress := func(current, total int64, phase string) {
		if globals.Quiet {
			return
		}
		if phase != barPhase {
			if bar != nil {
				_ = bar.Finish()
			}
			barPhase = phase
			bar = progressbar.Default(total, phase)
		}
		if bar != nil {
			_ = bar.Set64(current)
		}
	}

	result, err := s.indexer.FullIndex(ctx, s.repoPath, progress)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		cgerrors.Fatal(err, globals.JSON)
	}

	printIndexResult(result, globals)
}
