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
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

// runUpdate re-triages every file the pre-scan map would otherwise have to
// re-walk: it enumerates the repository once more (cheap relative to
// parsing) and hands each path to the Indexer's per-file incremental path,
// which itself short-circuits on the file-metadata tracker before paying
// for a re-parse.
func runUpdate(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	fs.Parse(args) //nolint:errcheck

	s := openSession(globals, fs.Arg(0))
	defer s.close()

	ctx := context.Background()
	err := filepath.Walk(s.repoPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if _, ok := s.grammars.LanguageFor(filepath.Ext(path)); !ok {
			return nil
		}
		if ierr := s.indexer.IncrementalIndex(ctx, s.repoPath, path); ierr != nil {
			fmt.Fprintf(os.Stderr, "  error: %s\n", ierr)
		}
		return nil
	})
	if err != nil {
		cgerrors.Fatal(cgerrors.NewInternalError("failed to walk repository", err.Error(), err), globals.JSON)
	}
	if !globals.Quiet {
		fmt.Println("update complete")
	}
}
