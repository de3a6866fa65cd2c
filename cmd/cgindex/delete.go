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
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

func runDelete(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "Usage: cgindex delete <path> [<path>...]") }
	fs.Parse(args) //nolint:errcheck

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	s := openSession(globals, "")
	defer s.close()

	for _, p := range fs.Args() {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(s.repoPath, p)
		}
		if err := s.indexer.DeleteFile(abs); err != nil {
			cgerrors.Fatal(err, globals.JSON)
		}
		if !globals.Quiet {
			fmt.Printf("deleted %s\n", p)
		}
	}
}
